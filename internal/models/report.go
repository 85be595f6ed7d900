package models

// ReportRequest carries a pulse report request from the modal submission to the builder
type ReportRequest struct {
	UserID     string
	ChannelIDs []string
	Days       int
}

type ChannelStats struct {
	ChannelID    string
	ChannelName  string
	Total        int
	SubtypeCount map[string]int
	PEI          float64
	HasPEI       bool
	DCR          float64
	HasDCR       bool
}
