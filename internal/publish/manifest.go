package publish

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// ManifestFile is written at the publish root after every run.
const ManifestFile = ".pagesmith-manifest.yml"

// Manifest records what a publish run produced.
type Manifest struct {
	RunID       string            `yaml:"run_id"`
	Site        string            `yaml:"site,omitempty"`
	GeneratedAt time.Time         `yaml:"generated_at"`
	Pages       []string          `yaml:"pages"`
	Failed      map[string]string `yaml:"failed,omitempty"`
	Assets      int               `yaml:"assets"`
}

func writeManifest(out string, report *Report, at time.Time) error {
	m := Manifest{
		RunID:       report.RunID,
		Site:        report.Site,
		GeneratedAt: at.UTC(),
		Pages:       report.Published,
		Assets:      report.Assets,
	}
	if m.Pages == nil {
		m.Pages = []string{}
	}
	if len(report.Failed) > 0 {
		m.Failed = make(map[string]string, len(report.Failed))
		for page, err := range report.Failed {
			m.Failed[page] = err.Error()
		}
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return err
	}
	return atomic.WriteFile(filepath.Join(out, ManifestFile), bytes.NewReader(data))
}

// ReadManifest loads the manifest of the last run under out.
func ReadManifest(out string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(out, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	sort.Strings(m.Pages)
	return &m, nil
}
