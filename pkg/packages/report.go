package packages

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Render writes the plan as an aligned table followed by a summary line.
func (r *Result) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PACKAGE\tACTION\tINSTALLED\tCANDIDATE\tSIZE")
	for _, e := range r.entries {
		installed := e.Installed
		if installed == "" {
			installed = "-"
		}
		action := string(e.Action)
		if e.Direction == DirectionDowngrade {
			action += " (downgrade)"
		}
		size := "-"
		if e.Action != ActionSkip {
			size = humanize.IBytes(uint64(e.Size))
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Name, action, installed, e.Version, size)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts := r.Counts()
	_, err := fmt.Fprintf(w, "\n%d to install, %d to update, %d up to date, %s to download\n",
		counts[ActionInstall], counts[ActionUpdate], counts[ActionSkip],
		humanize.IBytes(uint64(r.total)))
	return err
}

type planDocument struct {
	TotalSize int64   `yaml:"total_size"`
	Packages  []Entry `yaml:"packages"`
}

// WriteYAML writes the plan in machine readable form.
func (r *Result) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(planDocument{TotalSize: r.total, Packages: r.Entries()}); err != nil {
		return err
	}
	return enc.Close()
}
