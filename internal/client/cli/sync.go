package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

func (a *App) Sync(ctx context.Context) error {
	res, err := a.syncer.Sync(ctx)
	if res.Skipped {
		a.println("A sync is already running.")
		return nil
	}
	if err != nil {
		return err
	}
	a.printf("Sync finished: %d uploaded, %d failed, %d downloaded.\n", res.Uploaded, res.Failed, res.Downloaded)
	if !res.Complete {
		a.println("Some tables could not be downloaded, see history.")
	}
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.syncer.Status(ctx)
	if err != nil {
		return err
	}
	last := "never"
	if st.LastSync != nil {
		last = st.LastSync.Local().Format(time.DateTime)
	}
	a.printf("online: %t, syncing: %t, pending changes: %d, last sync: %s\n",
		st.IsOnline, st.IsSyncing, st.PendingChanges, last)
	return nil
}

func (a *App) History(ctx context.Context) error {
	entries, err := a.syncer.History(ctx, a.histLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.println("No sync history.")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tTABLE\tITEMS\tSTATUS\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Type, e.Table, e.ItemCount, e.Status, e.Details)
	}
	w.Flush()
	return nil
}
