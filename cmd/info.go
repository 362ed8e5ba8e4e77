package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/color"
	"github.com/audiobook-dl/audiobook-dl/config"
	"github.com/audiobook-dl/audiobook-dl/ffmpeg"
	"github.com/audiobook-dl/audiobook-dl/icon"
	"github.com/audiobook-dl/audiobook-dl/metadata"
	"github.com/audiobook-dl/audiobook-dl/pipeline"
	"github.com/audiobook-dl/audiobook-dl/source"
	"github.com/audiobook-dl/audiobook-dl/style"
	"github.com/audiobook-dl/audiobook-dl/util"
	"github.com/invopop/jsonschema"
	"github.com/muesli/reflow/wordwrap"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolP("json", "j", false, "Print the metadata document written by --write-json-metadata")
	infoCmd.Flags().Bool("schema", false, "Print the JSON schema of the metadata document")
	addCredentialFlags(infoCmd)
	infoCmd.SetOut(os.Stdout)
}

var infoCmd = &cobra.Command{
	Use:   "info <url>",
	Short: "Show what a URL resolves to without downloading it",
	Args: func(cmd *cobra.Command, args []string) error {
		if lo.Must(cmd.Flags().GetBool("schema")) {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if lo.Must(cmd.Flags().GetBool("schema")) {
			handleErr(json.NewEncoder(cmd.OutOrStdout()).Encode(sidecarSchema()))
			return
		}

		c := pipeline.New(config.Snapshot(), ffmpeg.New())
		c.Auth = authFromFlags(cmd)

		erase := util.PrintErasable(fmt.Sprintf("%s Resolving %s...", icon.Get(icon.Progress), args[0]))
		src, err := c.Resolve(cmd.Context(), args[0])
		if err != nil {
			erase()
			handleErr(err)
		}
		result, err := src.Download(cmd.Context(), args[0])
		erase()
		handleErr(err)

		switch r := result.(type) {
		case *audiobook.Audiobook:
			if lo.Must(cmd.Flags().GetBool("json")) {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				handleErr(enc.Encode(metadata.Sidecar{Metadata: r.Metadata, Chapters: r.Chapters}))
				return
			}
			printBook(cmd.OutOrStdout(), src, r)
		case *audiobook.Series:
			printSeries(cmd.OutOrStdout(), src, r)
		}
	},
}

func sidecarSchema() *jsonschema.Schema {
	reflector := new(jsonschema.Reflector)
	reflector.Anonymous = true
	reflector.Mapper = func(t reflect.Type) *jsonschema.Schema {
		switch t {
		case reflect.TypeOf(mo.Option[time.Time]{}):
			return &jsonschema.Schema{Type: "string", Format: "date-time"}
		case reflect.TypeOf(mo.Option[float64]{}):
			return &jsonschema.Schema{Type: "number"}
		}
		return nil
	}
	return reflector.Reflect(&metadata.Sidecar{})
}

func textWidth() int {
	width, _, err := util.TerminalSize()
	if err != nil || width <= 0 {
		return 80
	}
	return util.Min(width, 100) - 2
}

func printBook(w io.Writer, src source.Source, book *audiobook.Audiobook) {
	meta := book.Metadata
	label := style.New().Foreground(color.HiBlue).Bold(true).Render
	row := func(name, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(w, "%s %s\n", label(fmt.Sprintf("%-11s", name)), value)
		}
	}

	_, _ = fmt.Fprintf(w, "%s %s %s\n\n", icon.Get(icon.Book), style.Bold(meta.Title), style.SourceTag(source.Name(src)))
	row("Authors", meta.Author())
	row("Narrators", meta.Narrator())
	if order, ok := meta.Order(); ok {
		row("Series", fmt.Sprintf("%s #%s", meta.Series, order))
	} else {
		row("Series", meta.Series)
	}
	row("Genres", meta.Genre())
	row("Language", meta.Language)
	row("Publisher", meta.Publisher)
	row("ISBN", meta.ISBN)
	if date, ok := meta.ReleaseDate.Get(); ok {
		row("Released", date.Format(time.DateOnly))
	}
	row("Files", util.Quantify(len(book.Files), "file", "files"))
	if len(book.Chapters) > 0 {
		row("Chapters", util.Quantify(len(book.Chapters), "chapter", "chapters"))
	}
	if book.Cover.IsPresent() {
		row("Cover", book.Cover.MustGet().Ext)
	}

	if meta.Description != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", style.Fg(color.Yellow)(wordwrap.String(strings.TrimSpace(meta.Description), textWidth())))
	}
}

func printSeries(w io.Writer, src source.Source, series *audiobook.Series) {
	_, _ = fmt.Fprintf(w, "%s %s %s\n", icon.Get(icon.Book), style.Bold(series.Title), style.SourceTag(source.Name(src)))
	_, _ = fmt.Fprintf(w, "%s\n", util.Quantify(len(series.Books), "book", "books"))
	for _, book := range series.Books {
		_, _ = fmt.Fprintf(w, "  %s %s\n", icon.Get(icon.Arrow), book.ID)
	}
}
