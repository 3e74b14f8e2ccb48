package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	tariffhcl "carrier-tariff/adapters/hcl"
	"carrier-tariff/adapters/storage"
	"carrier-tariff/internal/config"
	"carrier-tariff/internal/errors"
)

var (
	snapshotDir     string
	snapshotCarrier string
	snapshotOut     string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage immutable tariff snapshots",
	Long: `Store, list, verify and export content-hashed tariff snapshots.

Snapshots are write-once. Storing a tariff whose content is already stored
for the carrier returns the existing snapshot.`,
}

var snapshotStoreCmd = &cobra.Command{
	Use:   "store <file.hcl>",
	Short: "Validate a tariff file and store it as a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotStore,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotList,
}

var snapshotVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify hashes and tables of all stored snapshots",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotVerify,
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export <snapshot-id>",
	Short: "Write a stored snapshot back out as an HCL tariff file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotExport,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotStoreCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotVerifyCmd)
	snapshotCmd.AddCommand(snapshotExportCmd)

	snapshotCmd.PersistentFlags().StringVar(&snapshotDir, "dir", "", "snapshot directory (default from config)")
	snapshotStoreCmd.Flags().StringVar(&snapshotCarrier, "carrier", "", "carrier name (default is the tariff name)")
	snapshotListCmd.Flags().StringVar(&snapshotCarrier, "carrier", "", "only list this carrier")
	snapshotExportCmd.Flags().StringVarP(&snapshotOut, "out", "o", "", "output file (default stdout)")
}

func openStore() (*storage.Store, error) {
	dir := snapshotDir
	if dir == "" {
		dir = config.Get().Snapshots.Directory
	}
	if dir == "" {
		return nil, errors.New(errors.TypeConfig, "no snapshot directory configured")
	}
	return storage.NewStore(dir)
}

func runSnapshotStore(cmd *cobra.Command, args []string) error {
	sheet, err := loadSheet(args[0])
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}

	if snapshotCarrier != "" {
		sheet.Carrier = snapshotCarrier
	}
	meta, err := store.Store(context.Background(), sheet)
	if err != nil {
		return err
	}

	return render(cmd.OutOrStdout(), meta, func(w io.Writer) {
		fmt.Fprintf(w, "stored %s\n", meta.ID)
		fmt.Fprintf(w, "  carrier: %s\n", meta.Carrier)
		fmt.Fprintf(w, "  hash:    %s\n", meta.ContentHash)
		fmt.Fprintf(w, "  file:    %s\n", meta.FilePath)
	})
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	list := store.List(snapshotCarrier)

	return render(cmd.OutOrStdout(), list, func(w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "no snapshots")
			return
		}
		for _, m := range list {
			fmt.Fprintf(w, "%s  %-10s %-24s %s  %s\n",
				m.ID, m.Carrier, m.Tariff, m.ContentHash[:8], m.CreatedAt.Format(time.RFC3339))
		}
	})
}

func runSnapshotVerify(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	problems := store.VerifyIntegrity(context.Background())
	if err := render(cmd.OutOrStdout(), map[string]any{"problems": problems}, func(w io.Writer) {
		for _, p := range problems {
			fmt.Fprintln(w, "FAIL", p)
		}
		if len(problems) == 0 {
			fmt.Fprintf(w, "all %d snapshots verified\n", len(store.List("")))
		}
	}); err != nil {
		return err
	}

	if len(problems) > 0 {
		return errors.Newf(errors.TypeMalformedTable, "%d snapshot(s) failed verification", len(problems))
	}
	return nil
}

func runSnapshotExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	sheet, err := store.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	out := tariffhcl.Encode(tariffhcl.NewDocument(sheet.Table, sheet.Zones))
	if snapshotOut == "" {
		_, err := cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(snapshotOut, out, 0o644); err != nil {
		return errors.Wrapf(errors.TypeInput, err, "failed to write %s", snapshotOut)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", snapshotOut)
	return nil
}
