//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"postcanvas/internal/autosave"
	"postcanvas/internal/codec"
	"postcanvas/internal/crash"
	"postcanvas/internal/domain"
	"postcanvas/internal/export"
	applog "postcanvas/internal/log"
	"postcanvas/internal/render"
	"postcanvas/internal/scene"
	"postcanvas/internal/store"
	"postcanvas/internal/text"
	"postcanvas/internal/undo"
)

// Run starts the Fyne-based editor shell. workspaceDir may be empty; the user
// then picks a workspace folder from the UI.
func Run(workspaceDir string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	var (
		ws  *store.Workspace
		doc *domain.Document
	)
	defer func() { crash.Recover(ws, doc) }()

	fonts, err := text.NewLibrary()
	if err != nil {
		return fmt.Errorf("load fonts: %w", err)
	}
	raster := render.NewRasterizer(fonts)
	exporter := export.New(raster, codec.Codec{})

	fyneApp := app.NewWithID("postcanvas")
	w := fyneApp.NewWindow("PostCanvas")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1280)
	winH := prefs.IntWithFallback("window.height", 860)
	if winW < 900 {
		winW = 900
	}
	if winH < 640 {
		winH = 640
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")

	// Live page view. The renderer pushes frames through the surface provider
	// and we mirror them into a Fyne image.
	pageView := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1080, 1080)))
	pageView.FillMode = canvas.ImageFillContain
	pageView.SetMinSize(fyne.NewSize(540, 540))
	provider := &render.Provider{
		Raster: raster,
		OnFrame: func(frame *image.RGBA) {
			fyne.Do(func() {
				pageView.Image = frame
				pageView.Refresh()
			})
		},
	}

	var (
		renderer       *scene.Renderer
		currentPageIdx int
	)
	undoMgr := undo.NewManager(undo.Config{
		MaxBytes:    16 * 1024 * 1024,
		MaxPerPage:  30,
		MinInterval: 300 * time.Millisecond,
	})

	// Pages list (left), one cached thumbnail plus name per row.
	pagesDisplay := []string{}
	pagesList := widget.NewList(
		func() int { return len(pagesDisplay) },
		func() fyne.CanvasObject {
			thumb := canvas.NewImageFromResource(nil)
			thumb.FillMode = canvas.ImageFillContain
			thumb.SetMinSize(fyne.NewSize(48, 48))
			return container.NewHBox(thumb, widget.NewLabel(""))
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i < 0 || int(i) >= len(pagesDisplay) {
				return
			}
			row := o.(*fyne.Container)
			row.Objects[1].(*widget.Label).SetText(pagesDisplay[i])
			if doc != nil && int(i) < len(doc.Pages) && len(doc.Pages[i].Preview) > 0 {
				thumb := row.Objects[0].(*canvas.Image)
				thumb.Resource = fyne.NewStaticResource(doc.Pages[i].ID+".png", doc.Pages[i].Preview)
				thumb.Refresh()
			}
		},
	)
	refreshPagesList := func() {
		pagesDisplay = pagesDisplay[:0]
		if doc != nil {
			for i, pg := range doc.Pages {
				name := strings.TrimSpace(pg.Name)
				if name == "" {
					name = fmt.Sprintf("Page %d", i+1)
				}
				pagesDisplay = append(pagesDisplay, name)
			}
		}
		pagesList.Refresh()
	}

	// flushPage writes the live graph back into the open document.
	flushPage := func() {
		if !flushable(renderer, doc) {
			return
		}
		raw, err := renderer.Serialize()
		if err != nil {
			l.Error("serialize page", slog.Any("err", err))
			return
		}
		if currentPageIdx >= 0 && currentPageIdx < len(doc.Pages) {
			doc.Pages[currentPageIdx].Graph = raw
			doc.Touch()
		}
	}

	pushSnapshot := func() {
		if renderer == nil || doc == nil {
			return
		}
		raw, err := renderer.Serialize()
		if err != nil {
			return
		}
		undoMgr.Push(undo.Snapshot{PageID: renderer.PageID(), Blob: raw, TS: time.Now()})
	}

	var syncInspector func()
	renderEvents := scene.Events{
		ElementSelected: func(*scene.Element) {
			fyne.Do(func() {
				if syncInspector != nil {
					syncInspector()
				}
			})
		},
	}

	openPage := func(idx int) {
		if doc == nil || idx < 0 || idx >= len(doc.Pages) {
			return
		}
		flushPage()
		if renderer != nil {
			renderer.Dispose()
		}
		currentPageIdx = idx
		renderer = scene.New(provider, scene.StdDecoder{}, codec.Codec{})
		renderer.SetEvents(renderEvents)
		if err := renderer.Activate(&doc.Pages[idx]); err != nil {
			l.Error("activate page", slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		pushSnapshot()
		pagesList.Select(idx)
	}
	pagesList.OnSelected = func(id widget.ListItemID) {
		if int(id) != currentPageIdx {
			openPage(int(id))
		}
	}

	// lastSave lets the workspace watcher tell our own writes from external
	// ones: events landing shortly after a save are ours.
	var lastSave atomic.Int64

	saveDoc := func() error {
		if ws == nil || doc == nil {
			return fmt.Errorf("no document open")
		}
		flushPage()
		if err := ws.Save(doc); err != nil {
			return err
		}
		lastSave.Store(time.Now().UnixNano())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if perr := refreshPreviews(ctx, ws, exporter, doc); perr != nil {
			l.Warn("refresh previews", slog.Any("err", perr))
		} else {
			fyne.Do(pagesList.Refresh)
		}
		return nil
	}
	saver := autosave.New(30*time.Second, func() error { return saveDoc() })

	openDocument := func(d *domain.Document) {
		doc = d
		w.SetTitle("PostCanvas — " + d.Name)
		refreshPagesList()
		openPage(0)
		saver.Start()
		status.SetText("Opened " + d.Name)
		wsRef := ws
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			blobs := make([][]byte, len(d.Pages))
			for i := range d.Pages {
				blob, perr := pagePreview(ctx, wsRef, exporter, d, &d.Pages[i])
				if perr != nil {
					l.Warn("page preview", slog.Any("err", perr))
					continue
				}
				blobs[i] = blob
			}
			fyne.Do(func() {
				if doc != d {
					return
				}
				for i := range blobs {
					if blobs[i] != nil && i < len(d.Pages) {
						d.Pages[i].Preview = blobs[i]
					}
				}
				pagesList.Refresh()
			})
		}()
	}

	// startWatch reloads the open document when another process rewrites it.
	var watchCancel context.CancelFunc
	startWatch := func() {
		if watchCancel != nil {
			watchCancel()
		}
		ctx, cancel := context.WithCancel(context.Background())
		watchCancel = cancel
		wsRef := ws
		go func() {
			err := wsRef.Watch(ctx, func(docID string) {
				if time.Since(time.Unix(0, lastSave.Load())) < 2*time.Second {
					return
				}
				fyne.Do(func() {
					if ws != wsRef || doc == nil || docID != doc.ID {
						return
					}
					d, lerr := wsRef.Load(docID)
					if lerr != nil {
						l.Warn("reload after external change", slog.Any("err", lerr))
						return
					}
					if renderer != nil {
						renderer.Dispose()
					}
					doc = d
					if currentPageIdx >= len(doc.Pages) {
						currentPageIdx = len(doc.Pages) - 1
					}
					refreshPagesList()
					openPage(currentPageIdx)
					status.SetText(doc.Name + " changed on disk, reloaded.")
				})
			})
			if err != nil && ctx.Err() == nil {
				l.Warn("workspace watch stopped", slog.Any("err", err))
			}
		}()
	}

	// Inspector (right).
	contentEntry := widget.NewMultiLineEntry()
	contentEntry.SetPlaceHolder("Text content…")
	sizeEntry := widget.NewEntry()
	sizeEntry.SetPlaceHolder("64")
	familySelect := widget.NewSelect(fonts.Families(), nil)
	alignSelect := widget.NewSelect([]string{"left", "center", "right"}, nil)

	syncInspector = func() {
		if renderer == nil {
			return
		}
		el := renderer.Selected()
		if el == nil || el.Kind != domain.KindText {
			return
		}
		contentEntry.SetText(el.Content)
		sizeEntry.SetText(strconv.FormatFloat(el.FontSize, 'f', -1, 64))
		familySelect.SetSelected(el.FontFamily)
		alignSelect.SetSelected(string(el.TextAlign))
	}
	applyBtn := widget.NewButton("Apply", func() {
		if renderer == nil {
			return
		}
		patch := scene.TextPatch{}
		if s := contentEntry.Text; s != "" {
			patch.Content = &s
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(sizeEntry.Text), 64); err == nil && v > 0 {
			patch.FontSize = &v
		}
		if familySelect.Selected != "" {
			f := familySelect.Selected
			patch.FontFamily = &f
		}
		if alignSelect.Selected != "" {
			a := domain.Align(alignSelect.Selected)
			patch.Align = &a
		}
		if err := renderer.UpdateSelected(patch); err != nil {
			status.SetText(err.Error())
			return
		}
		pushSnapshot()
	})

	addTextBtn := widget.NewButton("Add Text", func() {
		if renderer == nil {
			return
		}
		if _, err := renderer.AddText("New text", scene.TextStyle{}); err != nil {
			dialog.ShowError(err, w)
			return
		}
		pushSnapshot()
		syncInspector()
	})
	addImageBtn := widget.NewButton("Add Image…", func() {
		if renderer == nil {
			return
		}
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			defer rc.Close()
			data, rerr := io.ReadAll(rc)
			if rerr != nil {
				dialog.ShowError(rerr, w)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			aerr := renderer.AddImage(ctx, data, func(el *scene.Element, derr error) {
				defer cancel()
				fyne.Do(func() {
					if derr != nil {
						status.SetText("Image decode failed: " + derr.Error())
						return
					}
					if el != nil {
						pushSnapshot()
						status.SetText("Image placed.")
					}
				})
			})
			if aerr != nil {
				cancel()
				dialog.ShowError(aerr, w)
			}
		}, w)
		fd.Show()
	})
	deleteBtn := widget.NewButton("Delete", func() {
		if renderer == nil {
			return
		}
		if err := renderer.DeleteSelected(); err != nil {
			status.SetText(err.Error())
			return
		}
		pushSnapshot()
	})
	orderBtn := func(label string, mv scene.Move) *widget.Button {
		return widget.NewButton(label, func() {
			if renderer == nil {
				return
			}
			if err := renderer.Reorder(mv); err != nil {
				status.SetText(err.Error())
				return
			}
			pushSnapshot()
		})
	}

	right := container.NewVBox(
		widget.NewLabel("Inspector"), widget.NewSeparator(),
		contentEntry,
		widget.NewForm(
			widget.NewFormItem("Size", sizeEntry),
			widget.NewFormItem("Font", familySelect),
			widget.NewFormItem("Align", alignSelect),
		),
		applyBtn, widget.NewSeparator(),
		addTextBtn, addImageBtn, deleteBtn,
		container.NewGridWithColumns(2,
			orderBtn("Forward", scene.MoveForward), orderBtn("Backward", scene.MoveBackward),
			orderBtn("To Front", scene.MoveToFront), orderBtn("To Back", scene.MoveToBack),
		),
	)

	addPageBtn := widget.NewButton("Add Page", func() {
		if doc == nil {
			return
		}
		flushPage()
		doc.AppendPage()
		refreshPagesList()
		openPage(len(doc.Pages) - 1)
	})
	removePageBtn := widget.NewButton("Remove Page", func() {
		if doc == nil || currentPageIdx < 0 || currentPageIdx >= len(doc.Pages) {
			return
		}
		if err := doc.RemovePage(doc.Pages[currentPageIdx].ID); err != nil {
			dialog.ShowError(err, w)
			return
		}
		if currentPageIdx >= len(doc.Pages) {
			currentPageIdx = len(doc.Pages) - 1
		}
		refreshPagesList()
		openPage(currentPageIdx)
	})
	left := container.NewBorder(
		widget.NewLabel("Pages"), container.NewVBox(addPageBtn, removePageBtn), nil, nil,
		pagesList,
	)

	restore := func(snap undo.Snapshot, ok bool) {
		if !ok || renderer == nil || doc == nil {
			return
		}
		if currentPageIdx >= 0 && currentPageIdx < len(doc.Pages) {
			doc.Pages[currentPageIdx].Graph = snap.Blob
			doc.Touch()
		}
		renderer.Dispose()
		renderer = scene.New(provider, scene.StdDecoder{}, codec.Codec{})
		renderer.SetEvents(renderEvents)
		if err := renderer.Activate(&doc.Pages[currentPageIdx]); err != nil {
			l.Error("activate after undo", slog.Any("err", err))
		}
	}

	// Menus.
	newItem := fyne.NewMenuItem("New Document…", func() {
		if ws == nil {
			dialog.ShowInformation("New Document", "Open a workspace first.", w)
			return
		}
		nameEntry := widget.NewEntry()
		nameEntry.SetPlaceHolder("Untitled")
		formatSelect := widget.NewSelect([]string{string(domain.FormatPost), string(domain.FormatStory)}, nil)
		formatSelect.SetSelected(string(domain.FormatPost))
		themeSelect := widget.NewSelect([]string{
			string(domain.ThemeClassic), string(domain.ThemeMidnight), string(domain.ThemeSunset),
			string(domain.ThemeOcean), string(domain.ThemeForest),
		}, nil)
		themeSelect.SetSelected(string(domain.ThemeClassic))
		form := dialog.NewForm("New Document", "Create", "Cancel", []*widget.FormItem{
			widget.NewFormItem("Name", nameEntry),
			widget.NewFormItem("Format", formatSelect),
			widget.NewFormItem("Theme", themeSelect),
		}, func(ok bool) {
			if !ok {
				return
			}
			name := strings.TrimSpace(nameEntry.Text)
			if name == "" {
				name = "Untitled"
			}
			d := domain.NewDocument(name, domain.Format(formatSelect.Selected), domain.Theme(themeSelect.Selected))
			if err := ws.Save(&d); err != nil {
				dialog.ShowError(err, w)
				return
			}
			openDocument(&d)
		}, w)
		form.Show()
	})
	openItem := fyne.NewMenuItem("Open Workspace…", func() {
		fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			h, oerr := store.Open(uri.Path())
			if oerr != nil {
				dialog.ShowError(oerr, w)
				return
			}
			ws = h
			startWatch()
			docs, lerr := ws.List()
			if lerr != nil {
				dialog.ShowError(lerr, w)
				return
			}
			status.SetText(fmt.Sprintf("Workspace: %s (%d documents)", h.Root, len(docs)))
			if len(docs) > 0 {
				openDocument(docs[0])
			}
		}, w)
		fd.Show()
	})
	saveItem := fyne.NewMenuItem("Save", func() {
		if err := saveDoc(); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Saved.")
	})
	exportDir := func() string {
		if ws != nil {
			return filepath.Join(ws.Root, "exports")
		}
		return "exports"
	}
	exportPNGItem := fyne.NewMenuItem("Export PNG (share)", func() {
		if doc == nil {
			return
		}
		flushPage()
		paths, err := exporter.DocumentPNG(doc, exportDir(), export.PresetShare)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText(fmt.Sprintf("Exported %d page(s) to %s", len(paths), exportDir()))
	})
	exportPDFItem := fyne.NewMenuItem("Export PDF", func() {
		if doc == nil {
			return
		}
		flushPage()
		out := filepath.Join(exportDir(), doc.Name+".pdf")
		if err := exporter.DocumentPDF(doc, out, export.PresetShare); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Exported " + out)
	})

	newItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyN, Modifier: fyne.KeyModifierControl}
	saveItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierControl}
	w.SetMainMenu(fyne.NewMainMenu(
		fyne.NewMenu("File", openItem, newItem, saveItem),
		fyne.NewMenu("Export", exportPNGItem, exportPDFItem),
	))

	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) {
		if renderer != nil {
			restore(undoMgr.Undo(renderer.PageID()))
		}
	})
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) {
		if renderer != nil {
			restore(undoMgr.Redo(renderer.PageID()))
		}
	})

	center := container.NewMax(pageView)
	w.SetContent(container.NewBorder(nil, status, left, right, center))

	w.SetOnClosed(func() {
		if watchCancel != nil {
			watchCancel()
		}
		saver.Stop()
		if renderer != nil {
			renderer.Dispose()
		}
		if ws != nil && doc != nil {
			if err := saveDoc(); err != nil {
				l.Error("save on close", slog.Any("err", err))
			}
		}
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})

	if workspaceDir != "" {
		h, oerr := store.Open(workspaceDir)
		if oerr != nil {
			return oerr
		}
		ws = h
		startWatch()
		if docs, lerr := ws.List(); lerr == nil && len(docs) > 0 {
			openDocument(docs[0])
		}
	}

	w.ShowAndRun()
	return nil
}
