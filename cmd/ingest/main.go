package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"campaign-compliance/internal/markup"
	"campaign-compliance/internal/refsource"
	"campaign-compliance/internal/store"
)

func main() {
	var (
		dbPath    = flag.String("db", filepath.FromSlash("data/campaign-compliance.db"), "Path to SQLite database")
		owner     = flag.String("owner", "", "Owner the references belong to")
		topic     = flag.String("topic", "", "Topic stored with every reference")
		replace   = flag.Bool("replace", false, "Replace the owner's existing references")
		searchURL = flag.String("search-url", "", "Reference search endpoint (env REFSOURCE_URL)")
		searchKey = flag.String("search-key", "", "Reference search API key (env REFSOURCE_API_KEY)")
		files     multiFlag
		dirs      multiFlag
		queries   multiFlag
	)
	flag.Var(&files, "file", "Reference file (.md, .txt, .html; repeatable)")
	flag.Var(&dirs, "dir", "Directory of reference files (repeatable)")
	flag.Var(&queries, "query", "Remote search query to ingest (repeatable)")
	flag.Parse()

	loadEnvDefaults(searchURL, searchKey)

	paths := make([]string, 0, len(files))
	seen := make(map[string]struct{})
	addFile := func(path string) {
		cleaned := filepath.Clean(path)
		if _, ok := seen[cleaned]; ok {
			return
		}
		seen[cleaned] = struct{}{}
		paths = append(paths, cleaned)
	}
	for _, p := range files {
		addFile(p)
	}
	for _, dir := range dirs {
		filepath.WalkDir(filepath.Clean(dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logrus.WithError(err).WithField("path", path).Warn("walking reference dir")
				return nil
			}
			if !d.IsDir() && formatFor(path) != "" {
				addFile(path)
			}
			return nil
		})
	}

	var docs []store.ReferenceDoc
	for _, path := range paths {
		doc, err := loadFile(path)
		if err != nil {
			logrus.WithError(err).WithField("file", path).Warn("skipping reference file")
			continue
		}
		docs = append(docs, doc)
	}

	if len(queries) > 0 {
		remote, err := searchRemote(*searchURL, *searchKey, queries)
		if err != nil {
			if len(docs) == 0 {
				logrus.Fatalf("reference search: %v", err)
			}
			logrus.WithError(err).Warn("skipping remote references; continuing with local files")
		}
		docs = append(docs, remote...)
	}
	if len(docs) == 0 {
		logrus.Fatal("nothing to ingest: pass -file, -dir or -query")
	}
	docs = uniqueBySource(docs)
	for i := range docs {
		docs[i].Owner = *owner
		if docs[i].Topic == "" {
			docs[i].Topic = *topic
		}
	}

	db, err := store.Open(*dbPath, true)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	start := time.Now()
	if *replace {
		if err := db.ReplaceReferences(*owner, docs); err != nil {
			logrus.Fatalf("replace references: %v", err)
		}
	} else {
		for i := range docs {
			if err := db.SaveReference(&docs[i]); err != nil {
				logrus.Fatalf("save %s: %v", docs[i].Source, err)
			}
		}
	}
	total, err := db.CountReferences()
	if err != nil {
		logrus.WithError(err).Warn("count references")
	}
	logrus.WithFields(logrus.Fields{
		"owner":    *owner,
		"ingested": len(docs),
		"stored":   total,
		"replaced": *replace,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("reference ingest complete")
}

func loadEnvDefaults(searchURL, searchKey *string) {
	if strings.TrimSpace(*searchURL) == "" {
		*searchURL = strings.TrimSpace(os.Getenv("REFSOURCE_URL"))
	}
	if strings.TrimSpace(*searchKey) == "" {
		*searchKey = strings.TrimSpace(os.Getenv("REFSOURCE_API_KEY"))
	}
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	case ".html", ".htm":
		return "html"
	case ".txt":
		return "text"
	}
	return ""
}

func loadFile(path string) (store.ReferenceDoc, error) {
	format := formatFor(path)
	if format == "" {
		return store.ReferenceDoc{}, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return store.ReferenceDoc{}, err
	}
	content, err := markup.PlainText(string(raw), format)
	if err != nil {
		return store.ReferenceDoc{}, fmt.Errorf("convert %s: %w", format, err)
	}
	if content == "" {
		return store.ReferenceDoc{}, fmt.Errorf("empty reference")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return store.ReferenceDoc{
		Title:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Source:  "file://" + filepath.ToSlash(abs),
		Content: content,
	}, nil
}

func searchRemote(baseURL, apiKey string, queries []string) ([]store.ReferenceDoc, error) {
	client, err := refsource.NewClient(refsource.Config{APIKey: apiKey, BaseURL: baseURL})
	if err != nil {
		return nil, err
	}
	var docs []store.ReferenceDoc
	for _, query := range queries {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		result, err := client.Search(ctx, query)
		cancel()
		if err != nil {
			return docs, fmt.Errorf("search %q: %w", query, err)
		}
		for _, d := range result.Documents {
			if strings.TrimSpace(d.Content) == "" {
				continue
			}
			docs = append(docs, store.ReferenceDoc{
				Topic:   query,
				Title:   d.Title,
				Source:  firstNonEmpty(d.Source, "refsource:"+d.ID),
				Content: d.Content,
			})
		}
		logrus.WithFields(logrus.Fields{"query": query, "documents": len(result.Documents)}).Info("remote references fetched")
	}
	return docs, nil
}

// uniqueBySource keeps the first document per source; the store enforces one
// row per owner and source.
func uniqueBySource(docs []store.ReferenceDoc) []store.ReferenceDoc {
	seen := make(map[string]struct{}, len(docs))
	out := docs[:0]
	for _, d := range docs {
		key := strings.ToLower(strings.TrimSpace(d.Source))
		if _, dup := seen[key]; dup && key != "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
