package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/athapong/cardiograph/pkg/graph/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Cardiovascular chapters of the OpenStax Anatomy and Physiology textbook.
var openStaxChapterURLs = []string{
	"https://openstax.org/books/anatomy-and-physiology/pages/19-1-heart-anatomy",
	"https://openstax.org/books/anatomy-and-physiology/pages/19-2-cardiac-muscle-and-electrical-activity",
	"https://openstax.org/books/anatomy-and-physiology/pages/19-3-cardiac-cycle",
	"https://openstax.org/books/anatomy-and-physiology/pages/19-4-cardiac-physiology",
	"https://openstax.org/books/anatomy-and-physiology/pages/19-5-development-of-the-heart",
	"https://openstax.org/books/anatomy-and-physiology/pages/20-1-structure-and-function-of-blood-vessels",
	"https://openstax.org/books/anatomy-and-physiology/pages/20-2-blood-flow-blood-pressure-and-resistance",
}

const freeBooksCardiologyURL = "http://www.freebooks4doctors.com/fb/CARD.htm"

const (
	chapterDelay = 2 * time.Second
	bookDelay    = time.Second
)

// TextbookFetcher downloads cardiology content from open textbook sites.
type TextbookFetcher struct {
	client  *http.Client
	saveDir string
	logger  *logrus.Logger
}

// NewTextbookFetcher creates a fetcher saving raw records under saveDir.
func NewTextbookFetcher(saveDir string) *TextbookFetcher {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &TextbookFetcher{
		client:  &http.Client{Timeout: 60 * time.Second},
		saveDir: saveDir,
		logger:  logger,
	}
}

// FetchOpenStaxChapters downloads the cardiovascular chapters and saves each
// as a raw corpus record with markdown content. A failing chapter is logged
// and skipped.
func (f *TextbookFetcher) FetchOpenStaxChapters(ctx context.Context) ([]string, error) {
	f.logger.Info("Fetching cardiovascular chapters from OpenStax")

	var saved []string
	for _, chapterURL := range openStaxChapterURLs {
		if err := ctx.Err(); err != nil {
			return saved, errors.Wrap(err, "fetch cancelled")
		}

		path, err := f.fetchChapter(ctx, chapterURL)
		if err != nil {
			f.logger.WithError(err).WithField("url", chapterURL).Error("Failed to fetch chapter")
			metrics.FetchErrors.WithLabelValues("textbook").Inc()
		} else if path != "" {
			saved = append(saved, path)
			metrics.ArticlesFetched.WithLabelValues("textbook").Inc()
		}

		time.Sleep(chapterDelay)
	}

	f.logger.WithField("chapters", len(saved)).Info("OpenStax fetch completed")
	return saved, nil
}

func (f *TextbookFetcher) fetchChapter(ctx context.Context, chapterURL string) (string, error) {
	doc, err := f.getDocument(ctx, chapterURL)
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = "Unknown Chapter Title"
	}

	contentHTML, err := doc.Find("div.page-contents").First().Html()
	if err != nil || strings.TrimSpace(contentHTML) == "" {
		f.logger.WithField("url", chapterURL).Warn("Could not find chapter content")
		return "", nil
	}

	content, err := htmltomarkdown.ConvertString(contentHTML)
	if err != nil {
		return "", errors.Wrapf(err, "failed to convert chapter %q", title)
	}

	record := &graph.Document{
		ID:         uuid.New().String(),
		Title:      title,
		Source:     "OpenStax Anatomy and Physiology",
		URL:        chapterURL,
		Content:    content,
		SourceType: "textbook",
	}

	path, err := f.save("openstax", record)
	if err != nil {
		return "", err
	}

	f.logger.WithField("title", title).Info("Saved OpenStax chapter")
	return path, nil
}

// FetchBookReferences collects cardiology book links from FreeBooks4Doctors.
// Only references are stored; the books themselves are not downloaded, so
// the content field carries the access placeholder.
func (f *TextbookFetcher) FetchBookReferences(ctx context.Context) ([]string, error) {
	f.logger.Info("Fetching cardiology books from FreeBooks4Doctors")

	doc, err := f.getDocument(ctx, freeBooksCardiologyURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch book list")
	}

	var saved []string
	doc.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}

		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if href == "" || title == "" || strings.HasPrefix(href, "#") || href == "index.htm" {
			return true
		}
		if !strings.HasPrefix(href, "http") {
			href = "http://www.freebooks4doctors.com/fb/" + href
		}

		record := &graph.Document{
			ID:         uuid.New().String(),
			Title:      title,
			Source:     "Free Books 4 Doctors",
			URL:        href,
			Content:    graph.ContentPlaceholder,
			SourceType: "book_reference",
		}

		path, err := f.save("freebooks", record)
		if err != nil {
			f.logger.WithError(err).WithField("title", title).Error("Failed to save book reference")
			metrics.FetchErrors.WithLabelValues("textbook").Inc()
			return true
		}

		saved = append(saved, path)
		metrics.ArticlesFetched.WithLabelValues("textbook").Inc()
		f.logger.WithField("title", title).Info("Saved book reference")

		time.Sleep(bookDelay)
		return true
	})

	f.logger.WithField("references", len(saved)).Info("Book reference fetch completed")
	return saved, nil
}

// FetchAllSources fetches every configured textbook source.
func (f *TextbookFetcher) FetchAllSources(ctx context.Context) ([]string, error) {
	var all []string

	chapters, err := f.FetchOpenStaxChapters(ctx)
	if err != nil {
		return all, err
	}
	all = append(all, chapters...)

	books, err := f.FetchBookReferences(ctx)
	if err != nil {
		f.logger.WithError(err).Error("Book reference fetch failed")
	}
	all = append(all, books...)

	f.logger.WithField("resources", len(all)).Info("Textbook fetch completed")
	return all, nil
}

func (f *TextbookFetcher) getDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s failed", pageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s returned status %d", pageURL, resp.StatusCode)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

func (f *TextbookFetcher) save(prefix string, record *graph.Document) (string, error) {
	if err := os.MkdirAll(f.saveDir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", f.saveDir)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "failed to encode record %s", record.ID)
	}

	path := filepath.Join(f.saveDir, fmt.Sprintf("%s_%s.json", prefix, record.ID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}
	return path, nil
}
