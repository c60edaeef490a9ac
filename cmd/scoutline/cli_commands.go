// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/scoutline/scoutline/services/explorer/datatypes"
)

type companiesResponse struct {
	Companies []datatypes.Company `json:"companies"`
	Count     int                 `json:"count"`
}

var (
	rootCmd = &cobra.Command{
		Use:   "scoutline",
		Short: "A CLI to manage a Scoutline explorer deployment",
		Long: `Scoutline is a tool for inspecting and administering the
exploration state held by a running explorer service.`,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Check whether the explorer service is reachable",
		Run:   runStatus,
	}

	companiesCmd = &cobra.Command{
		Use:   "companies",
		Short: "Inspect the companies in the exploration state",
	}
	companiesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the companies visible in the current view",
		Run:   runCompaniesList,
	}
	listAll bool

	watchlistCmd = &cobra.Command{
		Use:   "watchlist",
		Short: "Inspect the watchlist",
	}
	watchlistListCmd = &cobra.Command{
		Use:   "list",
		Short: "List watchlisted companies in watchlist order",
		Run:   runWatchlistList,
	}
	watchlistStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate stats over the watchlist",
		Run:   runWatchlistStats,
	}

	viewCmd = &cobra.Command{
		Use:   "view [explore|watchlist]",
		Short: "Switch the active view mode",
		Args:  cobra.ExactArgs(1),
		Run:   runSetView,
	}

	selectCmd = &cobra.Command{
		Use:   "select [company-id]",
		Short: "Select a company (0 clears the selection)",
		Args:  cobra.ExactArgs(1),
		Run:   runSelect,
	}

	// Snapshot administration commands. Dump writes the full state as
	// JSON; restore pushes a previously dumped snapshot back.
	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Dump or restore the full exploration state",
	}
	snapshotDumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Write the current exploration state as JSON",
		Run:   runSnapshotDump,
	}
	dumpOutPath string

	snapshotRestoreCmd = &cobra.Command{
		Use:   "restore [file]",
		Short: "Replace the exploration state with a dumped snapshot",
		Args:  cobra.ExactArgs(1),
		Run:   runSnapshotRestore,
	}

	serverURL string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"Explorer base URL (defaults to $SCOUTLINE_EXPLORER_URL or http://localhost:12400)")

	rootCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(companiesCmd)
	companiesCmd.AddCommand(companiesListCmd)
	companiesListCmd.Flags().BoolVar(&listAll, "all", false,
		"Include every live company regardless of view")

	rootCmd.AddCommand(watchlistCmd)
	watchlistCmd.AddCommand(watchlistListCmd)
	watchlistCmd.AddCommand(watchlistStatsCmd)

	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(selectCmd)

	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotDumpCmd)
	snapshotDumpCmd.Flags().StringVarP(&dumpOutPath, "out", "o", "",
		"Write the snapshot to this file instead of stdout")
	snapshotCmd.AddCommand(snapshotRestoreCmd)
}

// explorerURL resolves the service base URL: flag, then environment,
// then the default local port.
func explorerURL() string {
	if serverURL != "" {
		return serverURL
	}
	if url := os.Getenv("SCOUTLINE_EXPLORER_URL"); url != "" {
		return url
	}
	return "http://localhost:12400"
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

func getJSON(path string, out any) error {
	resp, err := httpClient().Get(explorerURL() + path)
	if err != nil {
		return fmt.Errorf("failed to connect to explorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("explorer returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func putJSON(path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPut, explorerURL()+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to explorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("explorer returned %s: %s", resp.Status, bytes.TrimSpace(respBody))
	}
	return nil
}

// stdoutIsTerminal reports whether stdout is a terminal. Piped output
// gets raw JSON so the CLI composes with jq and friends.
func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func runStatus(cmd *cobra.Command, args []string) {
	var health map[string]string
	if err := getJSON("/health", &health); err != nil {
		log.Fatalf("Explorer is not reachable at %s: %v", explorerURL(), err)
	}
	fmt.Printf("Explorer at %s is %s\n", explorerURL(), health["status"])
}

func runCompaniesList(cmd *cobra.Command, args []string) {
	path := "/v1/companies"
	if listAll {
		path += "?scope=all"
	}

	var result companiesResponse
	if err := getJSON(path, &result); err != nil {
		log.Fatalf("Failed to list companies: %v", err)
	}

	if !stdoutIsTerminal() {
		printJSON(result.Companies)
		return
	}
	if result.Count == 0 {
		fmt.Println("No companies found.")
		return
	}
	for _, company := range result.Companies {
		fmt.Printf("%6d  %-30s  score %5.1f  %d open roles\n",
			company.ID, company.Name, company.MatchScore, company.OpenRoles)
	}
	fmt.Printf("\n%d companies\n", result.Count)
}

func runWatchlistList(cmd *cobra.Command, args []string) {
	var result companiesResponse
	if err := getJSON("/v1/watchlist", &result); err != nil {
		log.Fatalf("Failed to list watchlist: %v", err)
	}

	if !stdoutIsTerminal() {
		printJSON(result.Companies)
		return
	}
	if result.Count == 0 {
		fmt.Println("Watchlist is empty.")
		return
	}
	for i, company := range result.Companies {
		fmt.Printf("%2d. %-30s  score %5.1f\n", i+1, company.Name, company.MatchScore)
	}
}

func runWatchlistStats(cmd *cobra.Command, args []string) {
	var stats datatypes.WatchlistStats
	if err := getJSON("/v1/watchlist/stats", &stats); err != nil {
		log.Fatalf("Failed to fetch watchlist stats: %v", err)
	}

	if !stdoutIsTerminal() {
		printJSON(stats)
		return
	}
	fmt.Printf("Companies:         %d\n", stats.TotalCompanies)
	fmt.Printf("Excellent matches: %d\n", stats.ExcellentMatches)
	fmt.Printf("Open roles:        %d\n", stats.TotalOpenRoles)
}

func runSetView(cmd *cobra.Command, args []string) {
	mode := args[0]
	if err := putJSON("/v1/state/view", datatypes.SetViewModeRequest{
		Mode: datatypes.ViewMode(mode),
	}); err != nil {
		log.Fatalf("Failed to set view mode: %v", err)
	}
	fmt.Printf("View mode set to %s\n", mode)
}

func runSelect(cmd *cobra.Command, args []string) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		log.Fatalf("Invalid company id %q", args[0])
	}
	if err := putJSON("/v1/state/selection", datatypes.SetSelectionRequest{
		CompanyID: id,
	}); err != nil {
		log.Fatalf("Failed to set selection: %v", err)
	}
	if id == 0 {
		fmt.Println("Selection cleared")
	} else {
		fmt.Printf("Selected company %d\n", id)
	}
}

func runSnapshotDump(cmd *cobra.Command, args []string) {
	var snap datatypes.ExplorationState
	if err := getJSON("/v1/state", &snap); err != nil {
		log.Fatalf("Failed to fetch state: %v", err)
	}

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode snapshot: %v", err)
	}
	data = append(data, '\n')

	if dumpOutPath == "" {
		_, _ = os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(dumpOutPath, data, 0640); err != nil {
		log.Fatalf("Failed to write snapshot: %v", err)
	}
	fmt.Printf("Snapshot written to %s (version %d, %d companies)\n",
		dumpOutPath, snap.Version, len(snap.BaseCompanies)+len(snap.AddedCompanies))
}

func runSnapshotRestore(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Failed to read snapshot file: %v", err)
	}

	var snap datatypes.ExplorationState
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Fatalf("Snapshot file is not valid JSON: %v", err)
	}

	if err := putJSON("/v1/state", &snap); err != nil {
		log.Fatalf("Failed to restore snapshot: %v", err)
	}
	fmt.Printf("Snapshot restored (%d companies)\n",
		len(snap.BaseCompanies)+len(snap.AddedCompanies))
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}
