package opkg

import (
	"bufio"
	"strconv"
	"strings"

	version "github.com/hashicorp/go-version"
)

// infoRecord is one "Package:" stanza of opkg info output.
type infoRecord struct {
	Package string
	Version string
	Size    int64
	Status  string
}

// parseListInstalled reads "name - version" lines.
func parseListInstalled(out string) map[string]string {
	installed := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		name, ver, ok := strings.Cut(sc.Text(), " - ")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		ver = strings.TrimSpace(ver)
		// Some builds append " - <description>".
		if v, _, found := strings.Cut(ver, " - "); found {
			ver = v
		}
		if name != "" && ver != "" {
			installed[name] = ver
		}
	}
	return installed
}

// parseInfo splits opkg info output into stanzas. Continuation lines
// (Description bodies) are ignored.
func parseInfo(out string) []infoRecord {
	var (
		records []infoRecord
		cur     *infoRecord
	)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Package":
			records = append(records, infoRecord{Package: value})
			cur = &records[len(records)-1]
		case "Version":
			if cur != nil {
				cur.Version = value
			}
		case "Size":
			if cur != nil {
				if n, err := strconv.ParseInt(value, 10, 64); err == nil {
					cur.Size = n
				}
			}
		case "Status":
			if cur != nil {
				cur.Status = value
			}
		}
	}
	return records
}

// selectCandidate picks the feed version of name. opkg info may list the
// installed copy next to one or more feed copies; only stanzas carrying a
// download size come from a feed. The highest comparable version wins,
// otherwise the first listed.
func selectCandidate(records []infoRecord, name string) (infoRecord, bool) {
	var (
		best  infoRecord
		bestV *version.Version
		found bool
	)
	for _, r := range records {
		if r.Package != name || r.Version == "" || r.Size <= 0 {
			continue
		}
		v, err := version.NewVersion(r.Version)
		if !found {
			best, bestV, found = r, v, true
			if err != nil {
				bestV = nil
			}
			continue
		}
		if err == nil && bestV != nil && v.GreaterThan(bestV) {
			best, bestV = r, v
		}
	}
	return best, found
}
