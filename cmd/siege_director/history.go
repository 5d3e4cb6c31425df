package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/hordenight/siege/internal/config"
	"github.com/hordenight/siege/internal/storage"
	"github.com/hordenight/siege/pkg/core"
)

func cmdHistory(args []string) error {
	fs := pflag.NewFlagSet("history", pflag.ContinueOnError)
	configDir := commonFlags(fs)
	world := fs.String("world", "sim-world", "world key to print")
	all := fs.Bool("all", false, "print every stored world")
	asJSON := fs.Bool("json", false, "print the history entries as JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := setup(*configDir); err != nil {
		return err
	}
	if config.GetStorageConfig().Type == "memory" {
		Logger.Warn("Memory storage keeps nothing between runs; use --storage sqlite or postgres")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	worlds := []string{*world}
	if *all {
		if worlds, err = store.Keys(); err != nil {
			return fmt.Errorf("listing worlds: %w", err)
		}
	}

	for _, w := range worlds {
		rec, err := store.Get(w)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Printf("No siege record for world %q\n", w)
			continue
		}
		if err != nil {
			return fmt.Errorf("loading %s: %w", w, err)
		}

		if *asJSON {
			out, err := json.MarshalIndent(map[string]any{"world": w, "history": rec.History.Entries()}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			continue
		}
		fmt.Printf("%s: %s, siege %d, next on day %d, %d completed, %d kills all time\n",
			w, rec.State, rec.SiegeCount, rec.NextSiegeDay, rec.TotalSiegesCompleted, rec.TotalKillsAllTime)
		if err := printHistory(os.Stdout, rec); err != nil {
			return err
		}
	}
	return nil
}

// printHistory writes the retained history as a table, numbering entries by
// their position among all completed sieges.
func printHistory(w io.Writer, rec *core.SiegeRecord) error {
	entries := rec.History.Entries()
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "  no completed sieges")
		return err
	}
	first := rec.TotalSiegesCompleted - len(entries) + 1

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tDAY\tFROM\tKILLS\tBONUS\tSPECIALS\tSPAWNED\tTARGET\t")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\t%d\t%d\t%d\t\n",
			first+i, e.Day, e.Direction, e.Kills, e.Bonus, e.Specials, e.Spawned, e.Target)
	}
	return tw.Flush()
}
