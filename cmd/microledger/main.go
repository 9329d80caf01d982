// Copyright (C) 2020-2026 Sirius Social, Inc.
// This file is part of go-microledger
//
// go-microledger is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-microledger is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-microledger.  If not, see <https://www.gnu.org/licenses/>.

// microledger inspects ledger directories offline: listing ledgers,
// dumping states and transactions, and checking inclusion proofs.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sirius-social/go-microledger/crypto"
	"github.com/sirius-social/go-microledger/crypto/merklearray"
	"github.com/sirius-social/go-microledger/ledger"
	"github.com/sirius-social/go-microledger/logging"
	"github.com/sirius-social/go-microledger/protocol"
)

var dataDir string

func main() {
	root := &cobra.Command{
		Use:           "microledger",
		Short:         "inspect microledger directories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "dir", ".", "ledger directory")
	root.AddCommand(listCmd(), stateCmd(), txnsCmd(), proveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openList() (*ledger.List, error) {
	log := logging.NewLogger()
	log.SetLevel(logging.Warn)
	return ledger.OpenList(dataDir, log)
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list the ledgers in the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openList()
			if err != nil {
				return err
			}
			defer l.Close()
			for _, name := range l.Names() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <ledger>",
		Short: "print a ledger's state and state hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openList()
			if err != nil {
				return err
			}
			defer l.Close()
			m, err := l.Ledger(args[0])
			if err != nil {
				return err
			}
			state := m.Snapshot()
			fmt.Printf("%s\n", protocol.EncodeJSON(state))
			fmt.Printf("hash: %s\n", state.Hash())
			return nil
		},
	}
}

func txnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "txns <ledger>",
		Short: "dump a ledger's committed transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openList()
			if err != nil {
				return err
			}
			defer l.Close()
			m, err := l.Ledger(args[0])
			if err != nil {
				return err
			}
			for _, txn := range m.CommittedTransactions() {
				fmt.Printf("%s\n", txn.Encode())
			}
			return nil
		},
	}
}

func proveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prove <ledger> <seqNo>",
		Short: "print and check the inclusion proof of one transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seqNo, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("seqNo %q: %w", args[1], err)
			}
			l, err := openList()
			if err != nil {
				return err
			}
			defer l.Close()
			m, err := l.Ledger(args[0])
			if err != nil {
				return err
			}
			proof, err := m.AuditPathFor(seqNo)
			if err != nil {
				return err
			}
			txn, err := m.GetTransaction(seqNo)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", protocol.EncodeJSON(proof))

			root, err := crypto.DigestFromString(proof.RootHash)
			if err != nil {
				return err
			}
			path := make([]crypto.Digest, len(proof.AuditPath))
			for i, s := range proof.AuditPath {
				if path[i], err = crypto.DigestFromString(s); err != nil {
					return err
				}
			}
			leaf := merklearray.LeafHash(txn.Encode())
			if err := merklearray.VerifyAuditPath(root, leaf, seqNo-1, proof.LedgerSize, path); err != nil {
				return err
			}
			fmt.Println("proof verifies")
			return nil
		},
	}
}
