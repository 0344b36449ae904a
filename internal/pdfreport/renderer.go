// Package pdfreport renders lead intelligence reports to PDF via headless
// Chromium.
package pdfreport

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/joelkehle/leadscout/internal/leadintel"
)

const reportCSS = `
:root { --font-body: "Helvetica Neue", Arial, sans-serif; }
body { font-family: var(--font-body); color: #1c1917; line-height: 1.5; font-size: 0.9rem; }
h1 { font-size: 1.5rem; border-bottom: 2px solid #0f766e; padding-bottom: 0.3rem; }
h2 { font-size: 1.1rem; color: #0f766e; margin-top: 1.4rem; }
table { width: 100%; border-collapse: collapse; font-size: 0.85rem; }
th, td { border: 1px solid #a8a29e; padding: 0.35rem 0.5rem; text-align: left; }
thead th { background: #f1f5f9; font-weight: 700; }
a { color: #1d4ed8; }
.report-meta { color: #44403c; font-size: 0.85rem; margin-bottom: 1rem; }
.report-meta strong { color: #1c1917; }
.report-badge { display: inline-block; background: #ccfbf1; color: #134e4a; border: 1px solid #5eead4; border-radius: 4px; padding: 0.15rem 0.5rem; font-size: 0.75rem; margin-right: 0.3rem; }
`

type Renderer struct {
	chromePath string
}

func NewRenderer() *Renderer {
	return &Renderer{chromePath: detectChromePath()}
}

// Render converts the result's markdown report to a paginated PDF.
func (r *Renderer) Render(ctx context.Context, res *leadintel.AnalysisResult) ([]byte, error) {
	htmlDoc, err := buildHTML(res)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.45).
				WithMarginRight(0.45).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

func buildHTML(res *leadintel.AnalysisResult) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(leadintel.BuildReport(res)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}

	var meta strings.Builder
	meta.WriteString("<div><strong>Address:</strong> " + html.EscapeString(res.Address.FullAddress) + "</div>")
	meta.WriteString("<div><strong>Analysis ID:</strong> " + html.EscapeString(res.ID) + "</div>")
	meta.WriteString("<div><strong>Date:</strong> " + html.EscapeString(res.AnalyzedAt.In(time.Local).Format("January 2, 2006 at 3:04 PM MST")) + "</div>")

	badge := "<span class='report-badge'>Confidence: " + html.EscapeString(string(res.DataQuality.Confidence)) + "</span>"
	if res.Grounding != nil {
		badge += "<span class='report-badge'>Grounded</span>"
	}

	return "<!doctype html><html><head><meta charset='utf-8'><title>Lead Intelligence Report</title>" +
		"<style>" + reportCSS + "\n" +
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;} " +
		"@media print{ @page{size:auto;margin:12mm;} body{background:#fff !important;} }" +
		"</style></head><body>" +
		"<div class='report-meta'>" + meta.String() + "</div>" +
		"<div class='report-badges'>" + badge + "</div>" +
		content.String() +
		"</body></html>", nil
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
