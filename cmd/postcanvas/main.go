/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"postcanvas/internal/backend"
	"postcanvas/internal/codec"
	"postcanvas/internal/config"
	"postcanvas/internal/crash"
	"postcanvas/internal/domain"
	"postcanvas/internal/export"
	applog "postcanvas/internal/log"
	"postcanvas/internal/render"
	"postcanvas/internal/store"
	"postcanvas/internal/text"
	"postcanvas/internal/ui"
	"postcanvas/internal/version"
)

func usage() {
	fmt.Println("PostCanvas — social image document editor")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  postcanvas version|-v|--version                       Show version")
	fmt.Println("  postcanvas init <dir>                                  Create a workspace at <dir>")
	fmt.Println("  postcanvas new <dir> <name> [post|story] [theme]       Create a new document in the workspace")
	fmt.Println("  postcanvas list <dir>                                  List documents in the workspace")
	fmt.Println("  postcanvas open <dir> <docID>                          Print a document summary")
	fmt.Println("  postcanvas pages <dir> <docID> list                    List the document's pages")
	fmt.Println("  postcanvas pages <dir> <docID> add [name]              Append a page")
	fmt.Println("  postcanvas pages <dir> <docID> remove <pageID>         Remove a page (the last page cannot be removed)")
	fmt.Println("  postcanvas export <dir> <docID> png <outDir> [preset]  Export all pages as PNG (preset: share|thumbnail)")
	fmt.Println("  postcanvas export <dir> <docID> pdf <outFile> [preset] Export the document as a single PDF")
	fmt.Println("  postcanvas share list                                  List documents in the shared gallery")
	fmt.Println("  postcanvas share publish <dir> <docID>                 Publish a document to the shared gallery")
	fmt.Println("  postcanvas search <query>                              Full-text search the shared gallery (PCV_SEARCH_DSN)")
	fmt.Println("  postcanvas ui [<dir>]                                  Launch desktop UI (build with -tags fyne for full UI)")
}

func fatal(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func openWorkspace(l *slog.Logger, dir string) *store.Workspace {
	abs, _ := filepath.Abs(dir)
	ws, err := store.Open(abs)
	if err != nil {
		fatal(l, "open workspace failed", err)
	}
	return ws
}

func newExporter() (*export.Exporter, error) {
	fonts, err := text.NewLibrary()
	if err != nil {
		return nil, err
	}
	return export.New(render.NewRasterizer(fonts), codec.Codec{}), nil
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var (
		ws  *store.Workspace
		doc *domain.Document
	)
	defer func() { crash.Recover(ws, doc) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("PostCanvas — social image document editor")
			fmt.Println(version.String())
			return
		case "init":
			if len(args) < 3 {
				fmt.Println("init requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			l.Info("init workspace", slog.String("root", abs))
			h, err := store.Open(abs)
			if err != nil {
				fatal(l, "init failed", err)
			}
			ws = h
			fmt.Println("Created workspace at", abs)
			return
		case "new":
			if len(args) < 4 {
				fmt.Println("new requires <dir> and <name>")
				usage()
				os.Exit(2)
			}
			cfg, _, cerr := config.Load()
			if cerr != nil {
				l.Warn("config load failed, using defaults", slog.Any("err", cerr))
				cfg = config.Defaults()
			}
			format := domain.Format(cfg.General.Format)
			thm := domain.Theme(cfg.General.Theme)
			if len(args) >= 5 {
				format = domain.Format(args[4])
			}
			if len(args) >= 6 {
				thm = domain.Theme(args[5])
			}
			if !format.Valid() {
				fatal(l, "invalid format", fmt.Errorf("unknown format %q (want post or story)", format))
			}
			ws = openWorkspace(l, args[2])
			d := domain.NewDocument(args[3], format, thm)
			doc = &d
			if err := ws.Save(doc); err != nil {
				fatal(l, "save failed", err)
			}
			fmt.Printf("Created document %s (%s, %s)\n", d.ID, format, thm)
			return
		case "list":
			if len(args) < 3 {
				fmt.Println("list requires <dir>")
				usage()
				os.Exit(2)
			}
			ws = openWorkspace(l, args[2])
			docs, err := ws.List()
			if err != nil {
				fatal(l, "list failed", err)
			}
			if len(docs) == 0 {
				fmt.Println("No documents.")
				return
			}
			for _, d := range docs {
				fmt.Printf("%s  %-24s %-5s %-8s %d page(s)  %s\n",
					d.ID, d.Name, d.Format, d.Theme, len(d.Pages), d.UpdatedAt.Format(time.RFC3339))
			}
			return
		case "open":
			if len(args) < 4 {
				fmt.Println("open requires <dir> and <docID>")
				usage()
				os.Exit(2)
			}
			ws = openWorkspace(l, args[2])
			d, err := ws.Load(args[3])
			if err != nil {
				fatal(l, "load failed", err)
			}
			doc = d
			fmt.Printf("Document: %s (%s)\n", d.Name, d.ID)
			fmt.Printf("Format: %s  Theme: %s  Updated: %s\n", d.Format, d.Theme, d.UpdatedAt.Format(time.RFC3339))
			for i, pg := range d.Pages {
				state := "ok"
				if len(pg.Graph) == 0 {
					state = "empty"
				}
				fmt.Printf("  %2d. %-24s %-5s %-8s graph:%s\n", i+1, pg.Name, pg.Format, pg.Theme, state)
			}
			return
		case "pages":
			if len(args) < 5 {
				fmt.Println("pages requires <dir> <docID> and a subcommand: list | add | remove")
				usage()
				os.Exit(2)
			}
			ws = openWorkspace(l, args[2])
			d, err := ws.Load(args[3])
			if err != nil {
				fatal(l, "load failed", err)
			}
			doc = d
			switch args[4] {
			case "list":
				for i, pg := range d.Pages {
					fmt.Printf("%2d. %s  %-24s %-5s %-8s\n", i+1, pg.ID, pg.Name, pg.Format, pg.Theme)
				}
			case "add":
				pg := d.AppendPage()
				if len(args) >= 6 {
					pg.Name = args[5]
				}
				if err := ws.Save(d); err != nil {
					fatal(l, "save failed", err)
				}
				fmt.Printf("Added page %s (%d total)\n", pg.ID, len(d.Pages))
			case "remove":
				if len(args) < 6 {
					fmt.Println("pages remove requires <pageID>")
					os.Exit(2)
				}
				if err := d.RemovePage(args[5]); err != nil {
					fatal(l, "remove page failed", err)
				}
				if err := ws.Save(d); err != nil {
					fatal(l, "save failed", err)
				}
				fmt.Printf("Removed page %s (%d remaining)\n", args[5], len(d.Pages))
			default:
				fmt.Println("unknown pages subcommand:", args[4])
				os.Exit(2)
			}
			return
		case "export":
			if len(args) < 6 {
				fmt.Println("export requires <dir> <docID> png|pdf <out>")
				usage()
				os.Exit(2)
			}
			ws = openWorkspace(l, args[2])
			d, err := ws.Load(args[3])
			if err != nil {
				fatal(l, "load failed", err)
			}
			doc = d
			preset := export.PresetShare
			if len(args) >= 7 {
				preset = export.PresetName(args[6])
			}
			exp, err := newExporter()
			if err != nil {
				fatal(l, "exporter setup failed", err)
			}
			switch args[4] {
			case "png":
				paths, eerr := exp.DocumentPNG(d, args[5], preset)
				if eerr != nil {
					fatal(l, "export failed", eerr)
				}
				for _, p := range paths {
					fmt.Println(p)
				}
			case "pdf":
				if eerr := exp.DocumentPDF(d, args[5], preset); eerr != nil {
					fatal(l, "export failed", eerr)
				}
				fmt.Println(args[5])
			default:
				fmt.Println("export kind must be png or pdf")
				os.Exit(2)
			}
			return
		case "share":
			if len(args) < 3 {
				fmt.Println("share requires a subcommand: list | publish")
				usage()
				os.Exit(2)
			}
			cfg, token, cerr := config.Load()
			if cerr != nil {
				fatal(l, "config load failed", cerr)
			}
			if !cfg.General.EnableShare {
				fmt.Println("Sharing is disabled. Enable it in the config (general.enable_share) or set PCV_ENABLE_SHARE=1.")
				os.Exit(1)
			}
			client := backend.NewClient(cfg.Backend.BaseURL, token, time.Duration(cfg.Backend.TimeoutMs)*time.Millisecond)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			switch args[2] {
			case "list":
				list, err := client.ListShared(ctx)
				if err != nil {
					fatal(l, "share list failed", err)
				}
				for _, sd := range list {
					fmt.Printf("%d  %-24s %-5s %-8s %d page(s)\n", sd.ID, sd.Name, sd.Format, sd.Theme, sd.Pages)
				}
			case "publish":
				if len(args) < 5 {
					fmt.Println("share publish requires <dir> and <docID>")
					os.Exit(2)
				}
				ws = openWorkspace(l, args[3])
				d, err := ws.Load(args[4])
				if err != nil {
					fatal(l, "load failed", err)
				}
				doc = d
				sd, err := client.Publish(ctx, backend.PublishRequest{
					StableID: d.ID,
					Name:     d.Name,
					Format:   string(d.Format),
					Theme:    string(d.Theme),
					Pages:    len(d.Pages),
					RawText:  documentText(d),
				})
				if err != nil {
					fatal(l, "publish failed", err)
				}
				fmt.Printf("Published %s as shared document %d\n", d.Name, sd.ID)
			default:
				fmt.Println("unknown share subcommand:", args[2])
				os.Exit(2)
			}
			return
		case "search":
			if len(args) < 3 {
				fmt.Println("search requires <query>")
				usage()
				os.Exit(2)
			}
			dsn := os.Getenv("PCV_SEARCH_DSN")
			if dsn == "" {
				fmt.Println("PCV_SEARCH_DSN is not set (postgres connection string for the shared gallery).")
				os.Exit(1)
			}
			db, err := backend.OpenDB(dsn)
			if err != nil {
				fatal(l, "open search db failed", err)
			}
			defer db.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			res, err := backend.SearchShared(ctx, db, backend.SearchQuery{Text: args[2], Limit: 50})
			if err != nil {
				fatal(l, "search failed", err)
			}
			if len(res) == 0 {
				fmt.Println("No results.")
				return
			}
			for _, r := range res {
				fmt.Printf("%d  %-24s %-5s %s\n", r.DocID, r.Name, r.Format, r.Snippet)
			}
			return
		case "ui":
			var dir string
			if len(args) >= 3 {
				dir = args[2]
			}
			if err := ui.Run(dir); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}

// documentText flattens a document's text content for server-side search
// indexing. Graph payloads are decoded leniently; corrupt pages contribute
// nothing rather than failing the publish.
func documentText(d *domain.Document) string {
	out := ""
	for _, pg := range d.Pages {
		if len(pg.Graph) == 0 {
			continue
		}
		var g domain.PageGraph
		if err := json.Unmarshal(pg.Graph, &g); err != nil {
			continue
		}
		for _, el := range g.Elements {
			if el.Kind == domain.KindText && el.Content != "" {
				if out != "" {
					out += "\n"
				}
				out += el.Content
			}
		}
	}
	return out
}
