// Command report runs canned reports or a read-only SELECT against the
// support center database and prints the result as a table.
//
// Usage:
//
//	go run ./cmd/report --list
//	go run ./cmd/report --id 15 --keyword housing
//	go run ./cmd/report --sql "SELECT name FROM Student"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"student-support-center/internal/config"
	"student-support-center/internal/db"
	"student-support-center/internal/logger"
	"student-support-center/internal/reports"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

func main() {
	list := flag.Bool("list", false, "List the available reports")
	id := flag.Int("id", 0, "Report id to run")
	keyword := flag.String("keyword", "", "Keyword for reports that take one")
	stmt := flag.String("sql", "", "Read-only SELECT to run instead of a report")
	timeout := flag.Duration("timeout", 30*time.Second, "Query timeout")
	flag.Parse()

	cfg := config.Load()
	logger.Configure(logger.Config{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr})

	if *list {
		printCatalog(os.Stdout)
		return
	}
	if *id == 0 && *stmt == "" {
		color.Red("Pass --list, --id or --sql.")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	d, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer d.Close()

	engine := reports.New(d)
	var res *reports.Result
	if *stmt != "" {
		res = engine.Console(ctx, *stmt)
	} else {
		res = engine.Run(ctx, *id, *keyword)
	}

	if res.Error != "" {
		color.Red("%s", res.Error)
		d.Close()
		os.Exit(1)
	}
	printResult(os.Stdout, res)
}

func printCatalog(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Title", "Keyword"})
	table.SetAutoWrapText(false)
	for _, def := range reports.Catalog() {
		kw := ""
		if def.Keyword {
			kw = "yes"
		}
		table.Append([]string{strconv.Itoa(def.ID), def.Title, kw})
	}
	table.Render()
}

func printResult(w io.Writer, res *reports.Result) {
	if res.Title != "" {
		color.Cyan("\n=== %s ===", res.Title)
	}
	if res.Description != "" {
		fmt.Fprintln(w, res.Description)
	}
	printTable(w, res.Table)
	if res.Extra != nil {
		color.Yellow("\n%s", res.Extra.Title)
		printTable(w, *res.Extra)
	}
	color.Green("%d row(s)", len(res.Rows))
}

func printTable(w io.Writer, t reports.Table) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(t.Headers)
	table.AppendBulk(t.Rows)
	table.Render()
}
