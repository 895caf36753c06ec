package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/normalisers/table"
)

// uriScheme prefixes every resource URI.
const uriScheme = "chatbot://"

// registerResources registers the report resources.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "reports",
		Name:        "reports",
		Description: "Reports in the knowledge base with their fingerprints",
		MIMEType:    "application/json",
	}, s.handleReportsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "reports/{name}",
		Name:        "report-content",
		Description: "Extracted text and tables of one report, page by page",
		MIMEType:    "text/markdown",
	}, s.handleReportContentResource)
}

func (s *Server) handleReportsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type reportInfo struct {
		Name        string `json:"name"`
		Fingerprint string `json:"fingerprint"`
		Pages       int    `json:"pages"`
		URI         string `json:"uri"`
	}

	infos := []reportInfo{}
	if s.ports.Reports != nil {
		reports, err := s.ports.Reports.ListReports(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing reports: %w", err)
		}
		for i := range reports {
			infos = append(infos, reportInfo{
				Name:        reports[i].Name,
				Fingerprint: reports[i].Fingerprint,
				Pages:       pageCount(reports[i].Units),
				URI:         uriScheme + "reports/" + url.PathEscape(reports[i].Name),
			})
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling reports: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleReportContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Reports == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	name := extractReportName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	report, err := s.ports.Reports.GetReport(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     renderReport(report),
		}},
	}, nil
}

// renderReport prints a report as markdown, one section per page.
func renderReport(r *domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", r.Name)
	page := 0
	for _, u := range r.Units {
		if u.Page != page {
			page = u.Page
			fmt.Fprintf(&b, "\n## Page %d\n\n", page)
		}
		switch u.Kind {
		case domain.ContentKindTable:
			b.WriteString(table.TextFromContent(u.Content))
		default:
			b.WriteString(u.Content)
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func pageCount(units []domain.ContentUnit) int {
	n := 0
	for _, u := range units {
		if u.Page > n {
			n = u.Page
		}
	}
	return n
}

// extractReportName returns the unescaped name of chatbot://reports/{name}.
func extractReportName(uri string) string {
	const prefix = uriScheme + "reports/"
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	name, err := url.PathUnescape(strings.TrimPrefix(uri, prefix))
	if err != nil || strings.Contains(name, "/") {
		return ""
	}
	return name
}
