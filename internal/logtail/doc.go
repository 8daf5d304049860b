// Package logtail reads the tail of periscope's own log file for the Logs
// view.
//
// Read extracts the last N lines with a ring buffer, so memory is bounded by
// N regardless of file size. Parse turns one line written by the zap file
// logger (JSON, ISO8601 "ts") into an Entry; non-JSON lines are kept as
// info-level entries so nothing silently disappears from the view. Filter
// applies a minimum level.
//
//	lines, err := logtail.Read(cfg.LogPath, 400)
//	if err != nil {
//		return err
//	}
//	for _, e := range logtail.Filter(logtail.ParseAll(lines), zapcore.WarnLevel) {
//		fmt.Println(e.Time.Format(time.TimeOnly), e.Level, e.Msg, e.FieldString())
//	}
package logtail
