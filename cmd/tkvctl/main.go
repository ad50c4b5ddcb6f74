// Copyright 2024 The Coldbrew Authors
// This file is part of Coldbrew.
//
// Coldbrew is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Coldbrew is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Coldbrew. If not, see <http://www.gnu.org/licenses/>.

// Command tkvctl is a small operator CLI over package tkv: open a
// database and print its stats, copy or erase it, and dump a collection
// or index to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coldbrewdb/tkv/tkv"
)

var (
	flagPath     string
	flagNoSubdir bool
	flagReadOnly bool
)

func openDB(extra ...tkv.Option) (*tkv.Database, error) {
	opts := []tkv.Option{}
	if flagNoSubdir {
		opts = append(opts, tkv.WithFlags(tkv.FlagNoSubdir))
	}
	if flagReadOnly {
		opts = append(opts, tkv.WithFlags(tkv.FlagReadOnly))
	}
	opts = append(opts, extra...)
	return tkv.Open(flagPath, opts...)
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "print environment-wide statistics for a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			st, err := db.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "map_size=%d last_page=%d last_txn=%d max_readers=%d num_readers=%d\n",
				st.MapSize, st.LastPageNo, st.LastTxnID, st.MaxReaders, st.NumReaders)
			for _, name := range db.Collections() {
				fmt.Fprintf(cmd.OutOrStdout(), "collection %s\n", name)
			}
			return nil
		},
	}
}

func newOpenCmd() *cobra.Command {
	var sizeNow, sizeUpper string
	cmd := &cobra.Command{
		Use:   "open",
		Short: "open (creating if absent) a database and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []tkv.Option
			geo, err := geometryFromFlags(sizeNow, sizeUpper)
			if err != nil {
				return err
			}
			if geo != nil {
				opts = append(opts, tkv.WithGeometry(*geo))
			}
			db, err := openDB(opts...)
			if err != nil {
				return err
			}
			db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "opened %s\n", flagPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&sizeNow, "size-now", "", `initial map size, e.g. "64MiB"`)
	cmd.Flags().StringVar(&sizeUpper, "size-upper", "", `maximum map size, e.g. "4GiB"`)
	return cmd
}

func geometryFromFlags(sizeNow, sizeUpper string) (*geometryOverride, error) {
	if sizeNow == "" && sizeUpper == "" {
		return nil, nil
	}
	return parseGeometryOverride(sizeNow, sizeUpper)
}

func newCopyToCmd() *cobra.Command {
	var dst string
	var compact bool
	cmd := &cobra.Command{
		Use:   "copy-to",
		Short: "write a consistent copy of the database to dst",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.CopyTo(dst, compact)
		},
	}
	cmd.Flags().StringVar(&dst, "dst", "", "destination path")
	cmd.Flags().BoolVar(&compact, "compact", false, "use the space-reclaiming copy mode")
	cmd.MarkFlagRequired("dst")
	return cmd
}

func eraseModeFromFlag(s string) (tkv.EraseMode, error) {
	switch s {
	case "", "force":
		return tkv.EraseForce, nil
	case "require-unused":
		return tkv.EraseRequireUnused, nil
	case "wait":
		return tkv.EraseWaitForUnused, nil
	default:
		return 0, fmt.Errorf("tkvctl: unknown mode %q (want force, require-unused, wait)", s)
	}
}

func newEraseCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "erase",
		Short: "truncate the database back to empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := eraseModeFromFlag(mode)
			if err != nil {
				return err
			}
			return tkv.Erase(flagPath, flagNoSubdir, m)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "force", "force, require-unused, or wait")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "remove the database entirely",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := eraseModeFromFlag(mode)
			if err != nil {
				return err
			}
			return tkv.Delete(flagPath, flagNoSubdir, m)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "force", "force, require-unused, or wait")
	return cmd
}

func newDumpCmd() *cobra.Command {
	var keySort, valueSort string
	var allowDup bool
	cmd := &cobra.Command{
		Use:   "dump <collection>",
		Short: "dump a collection's entries as hex key/value pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, vs, err := sortsFromFlags(keySort, valueSort)
			if err != nil {
				return err
			}
			db, err := openDB(tkv.WithFlags(tkv.FlagReadOnly))
			if err != nil {
				return err
			}
			defer db.Close()
			coll, err := db.Collection(args[0], ks, vs, allowDup, false)
			if err != nil {
				return err
			}
			return tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
				return dumpPairs(cmd, cs)
			})
		},
	}
	cmd.Flags().StringVar(&keySort, "key-sort", "lex", "lex, lex-reverse, or native-int")
	cmd.Flags().StringVar(&valueSort, "value-sort", "opaque", "opaque, lex, lex-reverse, fixed, or native-int")
	cmd.Flags().BoolVar(&allowDup, "allow-duplicates", false, "open with AllowDuplicates set")
	return cmd
}

func newDumpIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump-index <collection> <index>",
		Short: "dump an index's entries as hex key/value pairs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(tkv.WithFlags(tkv.FlagReadOnly))
			if err != nil {
				return err
			}
			defer db.Close()
			name := "index::" + args[0] + "::" + args[1]
			coll, err := db.Collection(name, tkv.KeyLexForward, tkv.ValueLexForward, true, false)
			if err != nil {
				return err
			}
			return tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
				return dumpPairs(cmd, cs)
			})
		},
	}
	return cmd
}

func dumpPairs(cmd *cobra.Command, cs tkv.CollectionSnapshot) error {
	for k, v := range cs.Pairs() {
		kb, err := k.Bytes()
		if err != nil {
			return err
		}
		vb, err := v.Bytes()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%x\t%x\n", kb, vb)
	}
	return nil
}

func sortsFromFlags(keySort, valueSort string) (tkv.KeySort, tkv.ValueSort, error) {
	var ks tkv.KeySort
	switch keySort {
	case "lex":
		ks = tkv.KeyLexForward
	case "lex-reverse":
		ks = tkv.KeyLexReverse
	case "native-int":
		ks = tkv.KeyNativeInt
	default:
		return 0, 0, fmt.Errorf("tkvctl: unknown key-sort %q", keySort)
	}
	var vs tkv.ValueSort
	switch valueSort {
	case "opaque":
		vs = tkv.ValueOpaque
	case "lex":
		vs = tkv.ValueLexForward
	case "lex-reverse":
		vs = tkv.ValueLexReverse
	case "fixed":
		vs = tkv.ValueFixedSize
	case "native-int":
		vs = tkv.ValueNativeInt
	default:
		return 0, 0, fmt.Errorf("tkvctl: unknown value-sort %q", valueSort)
	}
	return ks, vs, nil
}

func main() {
	root := &cobra.Command{
		Use:   "tkvctl",
		Short: "operate on a tkv database from the command line",
	}
	root.PersistentFlags().StringVar(&flagPath, "path", "", "database path")
	root.PersistentFlags().BoolVar(&flagNoSubdir, "no-subdir", false, "database is a single file, not a directory")
	root.PersistentFlags().BoolVar(&flagReadOnly, "readonly", false, "open read-only")
	root.MarkPersistentFlagRequired("path")

	root.AddCommand(newOpenCmd(), newStatCmd(), newCopyToCmd(), newEraseCmd(), newDeleteCmd(), newDumpCmd(), newDumpIndexCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
