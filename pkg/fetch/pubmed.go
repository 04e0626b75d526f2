// Package fetch acquires cardiology source material: PubMed articles via
// the NCBI E-utilities and textbook chapters from open web sources. Every
// fetched document lands as one JSON record in the raw corpus directory,
// ready for the extraction pipeline.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/athapong/cardiograph/pkg/graph/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// NCBI politeness delays.
	batchDelay = 500 * time.Millisecond
	termDelay  = 2 * time.Second

	detailBatchSize = 10
)

// PubMedFetcher downloads cardiology articles through the NCBI E-utilities.
// NCBI asks clients to identify themselves; the email and optional API key
// come from PUBMED_EMAIL and PUBMED_API_KEY.
type PubMedFetcher struct {
	client  *http.Client
	email   string
	apiKey  string
	saveDir string
	logger  *logrus.Logger
}

// NewPubMedFetcher creates a fetcher saving raw records under saveDir.
func NewPubMedFetcher(saveDir string) *PubMedFetcher {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	email := os.Getenv("PUBMED_EMAIL")
	if email == "" {
		logger.Warn("No PUBMED_EMAIL set; NCBI requests an email with every E-utilities call")
	}

	return &PubMedFetcher{
		client:  &http.Client{Timeout: 60 * time.Second},
		email:   email,
		apiKey:  os.Getenv("PUBMED_API_KEY"),
		saveDir: saveDir,
		logger:  logger,
	}
}

// SearchArticles returns up to maxResults PMIDs for a cardiology-scoped
// query. The optional date range uses YYYY/MM/DD.
func (f *PubMedFetcher) SearchArticles(ctx context.Context, query string, maxResults int, fromDate, toDate string) ([]string, error) {
	term := fmt.Sprintf("%s[Title/Abstract] AND cardiology[MeSH Terms] AND free full text[filter]", query)
	if fromDate != "" && toDate != "" {
		term += fmt.Sprintf(" AND %s:%s[pdat]", fromDate, toDate)
	}

	f.logger.WithField("query", query).Info("Searching PubMed")

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmax":  {fmt.Sprintf("%d", maxResults)},
		"sort":    {"relevance"},
		"retmode": {"json"},
	}
	body, err := f.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, errors.Wrapf(err, "PubMed search for %q failed", query)
	}

	var pmids []string
	for _, id := range gjson.GetBytes(body, "esearchresult.idlist").Array() {
		pmids = append(pmids, id.String())
	}

	f.logger.WithFields(logrus.Fields{
		"query":    query,
		"articles": len(pmids),
	}).Info("PubMed search completed")

	return pmids, nil
}

// FetchArticleDetails retrieves MEDLINE metadata for a batch of PMIDs.
func (f *PubMedFetcher) FetchArticleDetails(ctx context.Context, pmids []string) ([]MedlineRecord, error) {
	if len(pmids) == 0 {
		return nil, nil
	}

	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"rettype": {"medline"},
		"retmode": {"text"},
	}
	body, err := f.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, errors.Wrap(err, "PubMed efetch failed")
	}

	records, err := ParseMedline(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	f.logger.WithField("articles", len(records)).Info("Fetched article details")
	return records, nil
}

// FetchFullText tries to resolve the article's PubMed Central full text.
// Articles without a PMC link return empty text and no error.
func (f *PubMedFetcher) FetchFullText(ctx context.Context, pmid string) (string, error) {
	params := url.Values{
		"dbfrom":   {"pubmed"},
		"db":       {"pmc"},
		"linkname": {"pubmed_pmc"},
		"id":       {pmid},
		"retmode":  {"json"},
	}
	body, err := f.get(ctx, "elink.fcgi", params)
	if err != nil {
		return "", errors.Wrapf(err, "PMC link lookup for PMID %s failed", pmid)
	}

	pmcID := gjson.GetBytes(body, "linksets.0.linksetdbs.0.links.0").String()
	if pmcID == "" {
		f.logger.WithField("pmid", pmid).Info("No PMC link found")
		return "", nil
	}

	text, err := f.get(ctx, "efetch.fcgi", url.Values{
		"db":      {"pmc"},
		"id":      {pmcID},
		"rettype": {"text"},
		"retmode": {"text"},
	})
	if err != nil {
		f.logger.WithError(err).WithField("pmc_id", pmcID).Warn("Failed to fetch PMC full text")
		return "", nil
	}

	return string(text), nil
}

// SaveArticle writes one article to the raw corpus and returns the path.
func (f *PubMedFetcher) SaveArticle(record MedlineRecord, fullText string) (string, error) {
	if record.PMID == "" {
		return "", errors.New("cannot save article without a PMID")
	}

	if err := os.MkdirAll(f.saveDir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", f.saveDir)
	}

	data, err := json.MarshalIndent(record.Document(fullText), "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "failed to encode article %s", record.PMID)
	}

	path := filepath.Join(f.saveDir, fmt.Sprintf("pubmed_%s.json", record.PMID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}

	f.logger.WithFields(logrus.Fields{
		"pmid": record.PMID,
		"path": path,
	}).Info("Saved article")

	return path, nil
}

// FetchCardiologyArticles searches, fetches and saves articles for each
// term, pausing between batches and terms to stay within NCBI rate limits.
// A failing term or article is logged and skipped; the run continues.
func (f *PubMedFetcher) FetchCardiologyArticles(ctx context.Context, terms []string, maxPerTerm int, fromDate, toDate string) ([]string, error) {
	var saved []string

	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return saved, errors.Wrap(err, "fetch cancelled")
		}

		pmids, err := f.SearchArticles(ctx, term, maxPerTerm, fromDate, toDate)
		if err != nil {
			f.logger.WithError(err).WithField("term", term).Error("Search failed; skipping term")
			metrics.FetchErrors.WithLabelValues("pubmed").Inc()
			continue
		}
		if len(pmids) == 0 {
			f.logger.WithField("term", term).Warn("No articles found")
			continue
		}

		for start := 0; start < len(pmids); start += detailBatchSize {
			end := start + detailBatchSize
			if end > len(pmids) {
				end = len(pmids)
			}

			records, err := f.FetchArticleDetails(ctx, pmids[start:end])
			if err != nil {
				f.logger.WithError(err).WithField("term", term).Error("Detail fetch failed; skipping batch")
				metrics.FetchErrors.WithLabelValues("pubmed").Inc()
				continue
			}

			for _, record := range records {
				fullText, err := f.FetchFullText(ctx, record.PMID)
				if err != nil {
					f.logger.WithError(err).WithField("pmid", record.PMID).Warn("Full text lookup failed")
				}

				path, err := f.SaveArticle(record, fullText)
				if err != nil {
					f.logger.WithError(err).WithField("pmid", record.PMID).Error("Failed to save article")
					metrics.FetchErrors.WithLabelValues("pubmed").Inc()
					continue
				}
				saved = append(saved, path)
				metrics.ArticlesFetched.WithLabelValues("pubmed").Inc()
			}

			time.Sleep(batchDelay)
		}

		time.Sleep(termDelay)
	}

	f.logger.WithField("articles", len(saved)).Info("PubMed fetch completed")
	return saved, nil
}

func (f *PubMedFetcher) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if f.email != "" {
		params.Set("email", f.email)
	}
	if f.apiKey != "" {
		params.Set("api_key", f.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, eutilsBase+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request to %s failed", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s response", endpoint)
	}
	return body, nil
}
