package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aretw0/swapflow/internal/reconcile"
	"github.com/aretw0/swapflow/pkg/ports"
)

// ListSessions prints the ids of live sessions.
func ListSessions(ctx context.Context, store ports.SessionStore, w io.Writer) error {
	ids, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No active sessions found.")
		return nil
	}
	sort.Strings(ids)
	fmt.Fprintln(w, "Active Sessions:")
	for _, id := range ids {
		fmt.Fprintln(w, "- "+id)
	}
	return nil
}

// InspectSession pretty prints one session record.
func InspectSession(ctx context.Context, store ports.SessionStore, sessionID string, w io.Writer) error {
	s, err := store.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session '%s': %w", sessionID, err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// RemoveSessions deletes every given session and reports each outcome.
func RemoveSessions(ctx context.Context, store ports.SessionStore, ids []string, w io.Writer) error {
	var errs []error
	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			fmt.Fprintf(w, "Error removing '%s': %v\n", id, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "Removed session '%s'\n", id)
	}
	return errors.Join(errs...)
}

// ReconcileOnce runs a single reconciliation pass and prints its counts.
func ReconcileOnce(ctx context.Context, r *reconcile.Reconciler, w io.Writer) error {
	report, err := r.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "recorded=%d settled=%d dropped=%d abandoned=%d waiting=%d errors=%d\n",
		report.Recorded, report.Settled, report.Dropped, report.Abandoned, report.Waiting, report.Errors)
	return nil
}

// ImportWallet seals a private key for a user, replacing any wallet they had.
func ImportWallet(ctx context.Context, wallets ports.WalletProvider, userID, privateKey string, w io.Writer) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	wallet, err := wallets.ImportWallet(ctx, userID, privateKey)
	if err != nil {
		return fmt.Errorf("import wallet: %w", err)
	}
	printSystemMessage(w, "Imported wallet %s for user %s", wallet.Address, userID)
	return nil
}
