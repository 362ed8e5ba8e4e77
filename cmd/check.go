package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/audiobook-dl/audiobook-dl/constant"
	"github.com/audiobook-dl/audiobook-dl/icon"
	"github.com/audiobook-dl/audiobook-dl/style"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the external media tools are installed",
	Long:  "Check that ffmpeg and ffprobe are on the PATH. They are needed to combine, convert and tag books.",
	Run: func(cmd *cobra.Command, args []string) {
		if missing := MissingDependencies(); len(missing) > 0 {
			for _, dep := range missing {
				printMissingDependencyError(dep)
			}
			os.Exit(1)
		}
		fmt.Printf("%s %s and %s found\n", icon.Get(icon.Success), constant.FFmpeg, constant.FFprobe)
	},
}

// MissingDependencies returns the media tools that cannot be found in PATH.
func MissingDependencies() []string {
	var missing []string
	for _, dep := range []string{constant.FFmpeg, constant.FFprobe} {
		if _, err := exec.LookPath(dep); err != nil {
			missing = append(missing, dep)
		}
	}
	return missing
}

func printMissingDependencyError(dep string) {
	var installCmd string
	switch runtime.GOOS {
	case constant.Darwin:
		installCmd = "brew install ffmpeg"
	case constant.Linux:
		installCmd = "sudo apt install ffmpeg"
	case constant.Windows:
		installCmd = "scoop install ffmpeg"
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(style.HiRed).
		Padding(1, 2).
		Margin(1, 0)

	title := style.New().Bold(true).Foreground(style.HiRed).Render(fmt.Sprintf("%s Error: Missing Dependency", icon.Get(icon.Fail)))
	body := style.New().Foreground(style.Text).Render(fmt.Sprintf("'%s' was not found in your PATH.", dep))

	suggestion := ""
	if installCmd != "" {
		suggestion = fmt.Sprintf("\n\nIt ships with ffmpeg, try running:\n  %s", style.New().Foreground(style.AccentColor).Bold(true).Render(installCmd))
	}

	fmt.Println(box.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			body,
			suggestion,
		),
	))
}
