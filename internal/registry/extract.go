package registry

import (
	"bytes"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Extraction is pure over the fetched markup: the functions below take
// bytes, return records or typed errors, and never touch the network.

// ExtractListing pulls the project entries off a category listing page.
func ExtractListing(body []byte) ([]ListingItem, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	var names, urls []string
	doc.Find("div.layer-content > a").Each(func(_ int, s *goquery.Selection) {
		names = append(names, cleanText(s.Text()))
	})
	doc.Find("div.layer-media > a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		urls = append(urls, strings.TrimSpace(href))
	})

	// Mandante and arquitecto alternate inside the content block.
	var extras []string
	doc.Find("div.layer-content > div").Each(func(_ int, s *goquery.Selection) {
		extras = append(extras, cleanText(s.Text()))
	})

	items := make([]ListingItem, 0, len(urls))
	for i, u := range urls {
		item := ListingItem{URL: u}
		if i < len(names) {
			item.Name = names[i]
		}
		if 2*i < len(extras) {
			item.Mandante = extras[2*i]
		}
		if 2*i+1 < len(extras) {
			item.Arquitecto = extras[2*i+1]
		}
		items = append(items, item)
	}
	return items, nil
}

// PageCount reads the pagination block of a listing page and returns the
// highest page number, or 1 when the block is absent.
func PageCount(body []byte) int {
	doc, err := parseDocument(body)
	if err != nil {
		return 1
	}
	last := 1
	doc.Find("div.paginate a.page-numbers").Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil && n > last {
			last = n
		}
	})
	return last
}

// detailLabels are the accent-folded field labels found on detail pages.
// Every one of them is optional; projects routinely omit most.
var detailLabels = map[string]func(*ProjectRecord, string){
	"Mandante":                            func(r *ProjectRecord, v string) { r.Mandante = v },
	"Arquitecto":                          func(r *ProjectRecord, v string) { r.Arquitecto = v },
	"Unidad tecnica":                      func(r *ProjectRecord, v string) { r.UnidadTecnica = v },
	"Asesor":                              func(r *ProjectRecord, v string) { r.Asesor = v },
	"Entidad Evaluadora":                  func(r *ProjectRecord, v string) { r.EntidadEvaluadora = v },
	"Region":                              func(r *ProjectRecord, v string) { r.Region = v },
	"Comuna":                              func(r *ProjectRecord, v string) { r.Comuna = v },
	"Version de certificacion":            func(r *ProjectRecord, v string) { r.VersionCertificacion = v },
	"Nivel obtenido":                      func(r *ProjectRecord, v string) { r.NivelObtenido = v },
	"Fecha de logro obtenido":             func(r *ProjectRecord, v string) { r.FechaLogroObtenido = v },
	"Puntaje obtenido":                    func(r *ProjectRecord, v string) { r.PuntajeObtenido = v },
	"Asesor precertificacion":             func(r *ProjectRecord, v string) { r.AsesorPrecertificacion = v },
	"Entidad evaluadora precertificacion": func(r *ProjectRecord, v string) { r.EntidadEvaluadoraPrecertificacion = v },
	"Asesor certificacion":                func(r *ProjectRecord, v string) { r.AsesorCertificacion = v },
	"Entidad evaluadora certificacion":    func(r *ProjectRecord, v string) { r.EntidadEvaluadoraCertificacion = v },
}

// ExtractProject builds a ProjectRecord from one detail page. The
// project name is the only required field; a page without it yields an
// *ExtractionError. All other fields default to empty when absent.
func ExtractProject(body []byte, pageURL string, category Category) (ProjectRecord, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return ProjectRecord{}, err
	}

	record := ProjectRecord{
		URL:      pageURL,
		Category: category,
	}

	record.Name = cleanText(doc.Find("h1.entry-title").First().Text())
	if record.Name == "" {
		return ProjectRecord{}, &ExtractionError{URL: pageURL, Field: "project_name"}
	}

	if src, ok := doc.Find("figure.wp-block-image.size-large img").First().Attr("src"); ok {
		record.ImageURL = strings.Replace(strings.TrimSpace(src), "http:", "https:", 1)
	}
	if dt, ok := doc.Find("time.entry-date.published").First().Attr("datetime"); ok && len(dt) >= 10 {
		record.EntryDate = strings.TrimSpace(dt[:10])
	}

	doc.Find("div.entry-content li").Each(func(_ int, li *goquery.Selection) {
		label := foldAccents(cleanLabel(li.Find("b").First().Text()))
		set, ok := detailLabels[label]
		if !ok {
			return
		}
		// Own text of the <li> minus the bold label.
		value := cleanLabel(strings.TrimPrefix(li.Text(), li.Find("b").First().Text()))
		set(&record, value)
	})

	return record, nil
}

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ExtractionError{Field: "document"}
	}
	return doc, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanLabel strips surrounding whitespace and colons the site puts
// around field labels and values.
func cleanLabel(s string) string {
	return strings.Trim(cleanText(s), ": ")
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldAccents(s string) string {
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return out
}
