// Command warehouse loads seller marketplace data (acceptance acts, assembly
// tasks, supplies, reshipments, stock) into the warehouse database, either
// once per invocation or on a cron schedule.
package main

import "os"

func main() {
	os.Exit(Execute(defaultDeps(), os.Args[1:]))
}
