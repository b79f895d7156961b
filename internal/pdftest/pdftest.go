// Package pdftest writes small, well-formed PDF documents for tests: text
// runs drawn with Helvetica at absolute positions and optional AcroForm
// text widgets.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Run is one text-showing operation at an absolute position.
type Run struct {
	X, Y float64
	Size float64
	Text string
}

// Widget is an AcroForm text field with a single widget annotation that
// carries a normal appearance stream. With Kid set the field and its widget
// are separate dictionaries, the widget listed under the field's /Kids.
type Widget struct {
	Name  string
	Rect  [4]float64
	Value string
	Kid   bool
}

// widgetObjs are the object numbers of one widget.
type widgetObjs struct {
	field, annot, ap int
}

// Page lists the content of one page.
type Page struct {
	Runs    []Run
	Widgets []Widget
}

// At is a shorthand for a 12pt run.
func At(x, y float64, text string) Run {
	return Run{X: x, Y: y, Size: 12, Text: text}
}

type writer struct {
	buf     bytes.Buffer
	offsets []int
}

func (w *writer) object(num int, body string) {
	for len(w.offsets) < num {
		w.offsets = append(w.offsets, 0)
	}
	w.offsets[num-1] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

// Build renders pages into a PDF 1.4 file with a classic xref table.
func Build(pages ...Page) []byte {
	if len(pages) == 0 {
		pages = []Page{{}}
	}

	// Object layout: 1 catalog, 2 page tree, 3 font, then per page
	// (page, content, per widget field [kid] appearance), then the
	// AcroForm dictionary.
	const fontObj = 3
	next := 4
	pageObjs := make([]int, len(pages))
	contentObjs := make([]int, len(pages))
	widgets := make([][]widgetObjs, len(pages))
	var fieldObjs []int
	for i, p := range pages {
		pageObjs[i] = next
		contentObjs[i] = next + 1
		next += 2
		for _, wd := range p.Widgets {
			o := widgetObjs{field: next, annot: next}
			next++
			if wd.Kid {
				o.annot = next
				next++
			}
			o.ap = next
			next++
			widgets[i] = append(widgets[i], o)
			fieldObjs = append(fieldObjs, o.field)
		}
	}
	acroObj := 0
	if len(fieldObjs) > 0 {
		acroObj = next
		next++
	}

	w := &writer{}
	w.buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	catalog := "<< /Type /Catalog /Pages 2 0 R"
	if acroObj > 0 {
		catalog += fmt.Sprintf(" /AcroForm %d 0 R", acroObj)
	}
	w.object(1, catalog+" >>")

	kids := make([]string, len(pageObjs))
	for i, n := range pageObjs {
		kids[i] = fmt.Sprintf("%d 0 R", n)
	}
	w.object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>", strings.Join(kids, " "), len(pages)))
	w.object(fontObj, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, p := range pages {
		page := fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R", fontObj, contentObjs[i])
		if len(widgets[i]) > 0 {
			refs := make([]string, len(widgets[i]))
			for j, o := range widgets[i] {
				refs[j] = fmt.Sprintf("%d 0 R", o.annot)
			}
			page += fmt.Sprintf(" /Annots [%s]", strings.Join(refs, " "))
		}
		w.object(pageObjs[i], page+" >>")

		var content strings.Builder
		for _, r := range p.Runs {
			size := r.Size
			if size == 0 {
				size = 12
			}
			fmt.Fprintf(&content, "BT /F1 %s Tf 1 0 0 1 %s %s Tm (%s) Tj ET\n", num(size), num(r.X), num(r.Y), escape(r.Text))
		}
		w.object(contentObjs[i], fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()))

		for j, wd := range p.Widgets {
			o := widgets[i][j]
			field := fmt.Sprintf("/FT /Tx /T (%s) /V (%s) /DA (/Helv 10 Tf 0 g)", escape(wd.Name), escape(wd.Value))
			annot := fmt.Sprintf("/Type /Annot /Subtype /Widget /Rect [%s %s %s %s] /P %d 0 R /F 4 /AP << /N %d 0 R >>",
				num(wd.Rect[0]), num(wd.Rect[1]), num(wd.Rect[2]), num(wd.Rect[3]), pageObjs[i], o.ap)
			if wd.Kid {
				w.object(o.field, fmt.Sprintf("<< %s /Kids [%d 0 R] >>", field, o.annot))
				w.object(o.annot, fmt.Sprintf("<< %s /Parent %d 0 R >>", annot, o.field))
			} else {
				w.object(o.field, fmt.Sprintf("<< %s %s >>", annot, field))
			}
			ap := "/Tx BMC EMC\n"
			w.object(o.ap, fmt.Sprintf("<< /Type /XObject /Subtype /Form /BBox [0 0 %s %s] /Length %d >>\nstream\n%sendstream",
				num(wd.Rect[2]-wd.Rect[0]), num(wd.Rect[3]-wd.Rect[1]), len(ap), ap))
		}
	}

	if acroObj > 0 {
		refs := make([]string, len(fieldObjs))
		for i, n := range fieldObjs {
			refs[i] = fmt.Sprintf("%d 0 R", n)
		}
		w.object(acroObj, fmt.Sprintf("<< /Fields [%s] /DA (/Helv 10 Tf 0 g) /DR << /Font << /Helv %d 0 R >> >> >>", strings.Join(refs, " "), fontObj))
	}

	xref := w.buf.Len()
	size := next
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", size)
	w.buf.WriteString("0000000000 65535 f \n")
	for _, off := range w.offsets {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, xref)
	return w.buf.Bytes()
}

func num(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
