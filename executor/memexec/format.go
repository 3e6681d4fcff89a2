package memexec

import "strconv"

func formatInt(v int64) string      { return strconv.FormatInt(v, 10) }
func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
