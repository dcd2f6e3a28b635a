/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"postcanvas/internal/domain"
)

// DocumentPDF writes every page of the document into a single PDF at
// outPath. Pages are rasterized at the preset's resolution and embedded
// full-bleed; the PDF page size follows the document format in points, so a
// post document yields square pages and a story document 9:16 pages.
func (e *Exporter) DocumentPDF(doc *domain.Document, outPath string, preset PresetName) error {
	bw, bh := doc.Format.BaseSize()
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: float64(bw), Ht: float64(bh)},
	})
	pdf.SetTitle(doc.Name, true)
	pdf.SetAutoPageBreak(false, 0)

	rows := e.ExportAll(doc, preset)
	defer rows.Close()

	for rows.Next() {
		res := rows.Page()

		var buf bytes.Buffer
		if err := png.Encode(&buf, res.Image); err != nil {
			return fmt.Errorf("encode page %d: %w", res.Index+1, err)
		}

		pdf.AddPage()
		name := fmt.Sprintf("page-%d", res.Index+1)
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opts, &buf)
		pdf.ImageOptions(name, 0, 0, float64(bw), float64(bh), false, opts, 0, "")
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if pdf.Err() {
		return fmt.Errorf("build pdf: %v", pdf.Error())
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	if err := pdf.Output(out); err != nil {
		_ = out.Close()
		return fmt.Errorf("write pdf: %w", err)
	}
	return out.Close()
}
