package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/thermloop/internal/analysis"
	"github.com/san-kum/thermloop/internal/config"
	"github.com/san-kum/thermloop/internal/facility"
	"github.com/san-kum/thermloop/internal/storage"
)

const maxPlots = 6

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFACILITY\tPRESET\tTIME\tSIMULATED\tITER\tSTEP\tSTATUS")

	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1fs\t%d\t%s\t%s\n",
			run.ID,
			run.Facility,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.SimulatedTime,
			run.Iterations,
			run.TimestepMode,
			status,
		)
	}

	return w.Flush()
}

// defaultColumns picks heater power and the branch flows.
func defaultColumns(all []string) []string {
	var out []string
	for _, c := range all {
		if c == "heater_power" || strings.HasPrefix(c, "flow:") {
			out = append(out, c)
		}
	}
	return out
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	table, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}

	if len(table.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("facility: %s\n", meta.Facility)
	if meta.Error != "" {
		fmt.Printf("error: %s\n", meta.Error)
	}
	fmt.Printf("samples: %d\n\n", len(table.Rows))

	names := columns
	if len(names) == 0 {
		names = defaultColumns(table.Columns)
	}
	if len(names) > maxPlots {
		names = names[:maxPlots]
	}

	for _, name := range names {
		data := table.Column(name)
		if data == nil {
			return fmt.Errorf("run %s has no column %q (available: %v)", runID, name, table.Columns)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	table, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}

	name := analyzeColumn
	if name == "" {
		for _, c := range table.Columns {
			if strings.HasPrefix(c, "flow:") {
				name = c
				break
			}
		}
	}
	data := table.Column(name)
	if data == nil {
		return fmt.Errorf("run %s has no column %q (available: %v)", runID, name, table.Columns)
	}

	samples, interval, err := analysis.Resample(table.Column("time"), data, 0)
	if err != nil {
		return err
	}
	spec, err := analysis.PowerSpectrum(samples, interval)
	if err != nil {
		return err
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("facility: %s\n", meta.Facility)
	fmt.Printf("column: %s, %d samples every %.3fs\n\n", name, len(samples), interval)

	plotData := spec.Amplitudes[1:]
	if len(plotData) > 4 {
		plotData = plotData[:len(plotData)/4]
	}
	graph := asciigraph.Plot(plotData,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("amplitude spectrum ("+name+")"),
	)
	fmt.Println(graph)
	fmt.Println()

	f, amp := spec.Dominant()
	if f == 0 {
		fmt.Println("no oscillation")
		return nil
	}
	fmt.Printf("dominant frequency: %.4f Hz (period %.1fs), amplitude %.3g\n", f, 1/f, amp)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Println("facilities:")
		for _, name := range facility.PresetNames() {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	presets := config.ListPresets(args[0])
	if len(presets) == 0 {
		fmt.Printf("no presets for facility: %s\n", args[0])
		return nil
	}
	fmt.Printf("presets for %s:\n", args[0])
	for _, p := range presets {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func describeFacility(cmd *cobra.Command, args []string) error {
	desc, err := loadFacility(args[0])
	if err != nil {
		return err
	}
	if outFile != "" {
		return facility.Save(outFile, desc)
	}
	data, err := yaml.Marshal(desc)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
