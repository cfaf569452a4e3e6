package jobs

import (
	"context"

	"github.com/vuvuzela92/waregouse-project/internal/acts"
	"github.com/vuvuzela92/waregouse-project/internal/marketplace"
	"github.com/vuvuzela92/waregouse-project/internal/schema"
)

// ActCategories are the document categories holding acceptance acts.
var ActCategories = []string{"act-income-mp", "act-income"}

// RunActs downloads the acceptance acts of the last ActsDaysBack days for
// every account and loads their FBO and FBS rows.
func (r *Runner) RunActs(ctx context.Context) error {
	return r.forEachAccount(ctx, Acts, r.actsForAccount)
}

func (r *Runner) actsForAccount(ctx context.Context, acct marketplace.Account) error {
	end := r.now()
	begin := end.AddDate(0, 0, -r.opts.ActsDaysBack)

	var names []string
	err := r.step(Acts, "list_documents", func() error {
		for _, cat := range ActCategories {
			docs, err := r.api.ListDocuments(ctx, acct, cat, begin, end)
			if err != nil {
				return err
			}
			for _, d := range docs {
				names = append(names, d.ServiceName)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(names) == 0 {
		r.logger.Info("no acts to load", "account", acct.Name)
		return nil
	}

	var archives []marketplace.Archive
	err = r.step(Acts, "download", func() error {
		var err error
		archives, err = r.api.DownloadDocuments(ctx, acct, names)
		return err
	})
	if err != nil {
		return err
	}

	var fbo, fbs schema.Batch
	_ = r.step(Acts, "parse", func() error {
		fbo, fbs = r.parseArchives(acct, archives)
		return nil
	})

	if err := r.load(ctx, Acts, acct.Name, acts.FBOContract, fbo); err != nil {
		return err
	}
	return r.load(ctx, Acts, acct.Name, acts.FBSContract, fbs)
}

// parseArchives unpacks and parses every workbook. A broken bundle or
// workbook is logged and skipped.
func (r *Runner) parseArchives(acct marketplace.Account, archives []marketplace.Archive) (fbo, fbs schema.Batch) {
	for _, a := range archives {
		books, err := acts.Unpack(a.Data)
		if err != nil {
			r.logger.Warn("skipping act bundle", "account", acct.Name, "file", a.FileName, "err", err)
			continue
		}
		for _, wb := range books {
			sheet, err := acts.ParseWorkbook(wb, acct.Name)
			if err != nil {
				r.logger.Warn("skipping act workbook", "account", acct.Name, "document", wb.Document, "err", err)
				continue
			}
			o, s := acts.Split(sheet.Records)
			fbo = append(fbo, o...)
			fbs = append(fbs, s...)
		}
	}
	return fbo, fbs
}
