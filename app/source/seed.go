package source

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/news-comb/app/database"
)

type seedFile struct {
	Sources []seedEntry `yaml:"sources"`
}

type seedEntry struct {
	URL            string `yaml:"url"`
	RSSURL         string `yaml:"rss_url"`
	FullRSSContent bool   `yaml:"full_rss_content"`
	NeedBrowser    bool   `yaml:"need_browser"`
}

// SeedFromFile upserts the sources listed in a YAML file, keyed by URL.
// The first source ever inserted becomes active.
func (s *Service) SeedFromFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse sources file: %w", err)
	}

	seeded := 0
	for _, entry := range file.Sources {
		if entry.URL == "" {
			slog.Warn("Skipping source entry without URL")
			continue
		}

		existing, err := s.repo.GetByURL(entry.URL)
		if err != nil {
			return seeded, err
		}

		if existing != nil {
			existing.RSSURL = entry.RSSURL
			existing.FullRSSContent = entry.FullRSSContent
			existing.NeedBrowser = entry.NeedBrowser
			if err := s.repo.Update(*existing); err != nil {
				return seeded, err
			}
			seeded++
			continue
		}

		count, err := s.repo.Count()
		if err != nil {
			return seeded, err
		}

		_, err = s.repo.Insert(database.Source{
			URL:            entry.URL,
			RSSURL:         entry.RSSURL,
			FullRSSContent: entry.FullRSSContent,
			NeedBrowser:    entry.NeedBrowser,
			IsActive:       count == 0,
		})
		if err != nil {
			return seeded, err
		}
		seeded++
	}

	return seeded, nil
}
