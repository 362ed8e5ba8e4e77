package download

// State is the lifecycle stage of a single file transfer.
type State int

const (
	Pending State = iota
	Fetching
	Validating
	Decrypting
	Complete
	Failed
)

var stateNames = map[State]string{
	Pending:    "pending",
	Fetching:   "fetching",
	Validating: "validating",
	Decrypting: "decrypting",
	Complete:   "complete",
	Failed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == Complete || s == Failed
}
