package icon

// Icon identifies a UI symbol in the registry.
type Icon int

const (
	Fail Icon = iota + 1
	Success
	Progress
	Warn
	Info
	Download
	Book
	Lock
	Arrow
)

var icons = map[Icon]*iconDef{
	Fail: {
		emoji:   "💥",
		nerd:    "",
		plain:   "✖",
		kaomoji: "(×_×)",
		squares: "🟥",
	},
	Success: {
		emoji:   "🎉",
		nerd:    "",
		plain:   "✔",
		kaomoji: "(ᵔ◡ᵔ)",
		squares: "🟩",
	},
	Progress: {
		emoji:   "⏳",
		nerd:    "",
		plain:   "…",
		kaomoji: "(・_・;)",
		squares: "🟦",
	},
	Warn: {
		emoji:   "⚠️",
		nerd:    "",
		plain:   "!",
		kaomoji: "(o_O)",
		squares: "🟨",
	},
	Info: {
		emoji:   "💡",
		nerd:    "",
		plain:   "i",
		kaomoji: "(°ロ°)",
		squares: "🟪",
	},
	Download: {
		emoji:   "📥",
		nerd:    "",
		plain:   "↓",
		kaomoji: "(っ˘ڡ˘ς)",
		squares: "🟫",
	},
	Book: {
		emoji:   "🎧",
		nerd:    "",
		plain:   "♪",
		kaomoji: "(￣▽￣)ノ",
		squares: "⬛",
	},
	Lock: {
		emoji:   "🔒",
		nerd:    "",
		plain:   "#",
		kaomoji: "(¬‿¬)",
		squares: "🟧",
	},
	Arrow: {
		emoji:   "👉",
		nerd:    "",
		plain:   "→",
		kaomoji: "(☞ﾟヮﾟ)☞",
		squares: "▶",
	},
}
