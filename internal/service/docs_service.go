package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"techacademy_backend/pkg/logger"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	docsUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	docsMaxItems      = 6
	docsFetchedMsg    = "Contentstack docs fetched successfully"
	docsFallbackMsg   = "Using fallback data"
	whatsNewHeading   = "what's new"
	recommendHeading  = "recommended articles"
	docsFetchTimeout  = 10 * time.Second
	docsSectionFinder = "section, div"
)

type DocLink struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Date        string `json:"date,omitempty"`
}

// swagger:model DocsUpdates
type DocsUpdates struct {
	WhatsNew    []DocLink `json:"whatsNew"`
	Recommended []DocLink `json:"recommended"`
	LastUpdated string    `json:"lastUpdated"`
}

type DocsService struct {
	client  *resty.Client
	pageURL string
	now     func() time.Time
}

func NewDocsService(pageURL string) *DocsService {
	return &DocsService{
		client: resty.New().
			SetTimeout(docsFetchTimeout).
			SetHeader("User-Agent", docsUserAgent),
		pageURL: pageURL,
		now:     time.Now,
	}
}

// Updates 抓取文档首页的 What's New 与 Recommended Articles；
// 抓取失败时返回内置数据，永不报错
func (s *DocsService) Updates(ctx context.Context) (*DocsUpdates, string) {
	now := s.now().UTC().Format(time.RFC3339)

	updates, err := s.fetch(ctx)
	if err != nil {
		logger.Log.Warn("Failed to fetch Contentstack docs", zap.String("url", s.pageURL), zap.Error(err))
		return fallbackDocs(now), docsFallbackMsg
	}

	fallback := fallbackDocs(now)
	if len(updates.WhatsNew) == 0 {
		updates.WhatsNew = fallback.WhatsNew
	}
	if len(updates.Recommended) == 0 {
		updates.Recommended = fallback.Recommended
	}
	updates.LastUpdated = now
	return updates, docsFetchedMsg
}

func (s *DocsService) fetch(ctx context.Context) (*DocsUpdates, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.pageURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("docs page returned status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse docs page: %w", err)
	}

	base, _ := url.Parse(s.pageURL)
	return &DocsUpdates{
		WhatsNew:    extractDocLinks(doc, whatsNewHeading, base),
		Recommended: extractDocLinks(doc, recommendHeading, base),
	}, nil
}

// extractDocLinks 找到标题包含 heading 的区块，收集其中的链接
func extractDocLinks(doc *goquery.Document, heading string, base *url.URL) []DocLink {
	links := []DocLink{}
	doc.Find("h1, h2, h3, h4").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !strings.Contains(normalizeHeading(h.Text()), heading) {
			return true
		}

		// 最近的一个包含链接的祖先区块
		var container *goquery.Selection
		h.ParentsFiltered(docsSectionFinder).EachWithBreak(func(_ int, p *goquery.Selection) bool {
			if p.Find("a[href]").Length() > 0 {
				container = p
				return false
			}
			return true
		})
		if container == nil {
			return true
		}
		seen := map[string]bool{}
		container.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			title := strings.Join(strings.Fields(a.Text()), " ")
			href, _ := a.Attr("href")
			if title == "" || seen[title] {
				return true
			}
			seen[title] = true
			links = append(links, DocLink{Title: title, URL: resolveLink(base, href)})
			return len(links) < docsMaxItems
		})
		return false
	})
	return links
}

func normalizeHeading(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.ReplaceAll(s, "’", "'")
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func fallbackDocs(now string) *DocsUpdates {
	return &DocsUpdates{
		WhatsNew: []DocLink{
			{Title: "Taxonomy Localization", Description: "New feature for managing localized taxonomies", Date: now},
			{Title: "Studio", Description: "Visual builder for creating digital experiences", Date: now},
			{Title: "Working with Entry Tabs", Description: "Improved content editing experience", Date: now},
		},
		Recommended: []DocLink{
			{Title: "Content Delivery API", Description: "Learn how to fetch content using our APIs"},
			{Title: "Content Management API", Description: "Manage your content programmatically"},
			{Title: "Set up Live Preview", Description: "Preview your content before publishing"},
		},
		LastUpdated: now,
	}
}
