package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/athapong/cardiograph/pkg/fetch"
	"github.com/athapong/cardiograph/pkg/graph/processors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultTerms = "myocardial infarction,atrial fibrillation,heart failure,cardiomyopathy,coronary artery disease"

var (
	envFile    = flag.String("env", ".env", "Path to environment file")
	saveDir    = flag.String("save-dir", "data/raw", "Directory to save fetched articles")
	terms      = flag.String("terms", defaultTerms, "Comma-separated PubMed search terms")
	maxPerTerm = flag.Int("max-per-term", 5, "Maximum articles to fetch per search term")
	fromDate   = flag.String("from", "", "Start of publication date range (YYYY/MM/DD)")
	toDate     = flag.String("to", "", "End of publication date range (YYYY/MM/DD)")
	textbooks  = flag.Bool("textbooks", false, "Also fetch textbook chapters and book references")
	pdfDir     = flag.String("pdf-dir", "", "Directory of local PDF articles to import")
	logLevel   = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := godotenv.Load(*envFile); err != nil {
		logger.Warnf("Could not load env file %s: %v", *envFile, err)
	}

	ctx := context.Background()
	total := 0

	searchTerms := splitTerms(*terms)
	if len(searchTerms) > 0 {
		fetcher := fetch.NewPubMedFetcher(*saveDir)
		saved, err := fetcher.FetchCardiologyArticles(ctx, searchTerms, *maxPerTerm, *fromDate, *toDate)
		if err != nil {
			logger.Fatalf("PubMed fetch failed: %v", err)
		}
		total += len(saved)
	}

	if *textbooks {
		fetcher := fetch.NewTextbookFetcher(*saveDir)
		saved, err := fetcher.FetchAllSources(ctx)
		if err != nil {
			logger.Fatalf("Textbook fetch failed: %v", err)
		}
		total += len(saved)
	}

	if *pdfDir != "" {
		total += importPDFs(logger, *pdfDir, *saveDir)
	}

	logger.Infof("Saved %d raw documents to %s", total, *saveDir)
}

func splitTerms(s string) []string {
	var out []string
	for _, term := range strings.Split(s, ",") {
		if term = strings.TrimSpace(term); term != "" {
			out = append(out, term)
		}
	}
	return out
}

// importPDFs converts every PDF under dir into a raw corpus record.
func importPDFs(logger *logrus.Logger, dir, saveDir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Fatalf("Failed to read PDF directory: %v", err)
	}

	if err := os.MkdirAll(saveDir, 0755); err != nil {
		logger.Fatalf("Failed to create save directory: %v", err)
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Errorf("Failed to read %s: %v", path, err)
			continue
		}

		doc, err := processors.ImportPDF(path, content)
		if err != nil {
			logger.Errorf("Failed to import %s: %v", path, err)
			continue
		}

		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			logger.Errorf("Failed to encode %s: %v", path, err)
			continue
		}

		outPath := filepath.Join(saveDir, doc.ID+".json")
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			logger.Errorf("Failed to write %s: %v", outPath, err)
			continue
		}

		logger.Infof("Imported %s as %s", entry.Name(), doc.ID)
		imported++
	}
	return imported
}
