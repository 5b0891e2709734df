package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
)

// PrintStoreStatus outputs the fact store status in the configured format.
func PrintStoreStatus(status schema.StoreStatus, cfg *contract.Config) error {
	return dispatch(cfg,
		func(w io.Writer) error { return writeJSON(w, status) },
		func(w io.Writer) error { return writeStatusCSV(w, status) },
		func(w io.Writer) error { return writeStatusTable(w, status, cfg) },
	)
}

func writeStatusCSV(w io.Writer, s schema.StoreStatus) error {
	return writeCSVWithHeader(w, []string{"backend", "table", "rows", "last_synced"}, func(cw *csv.Writer) error {
		for _, t := range s.Tables {
			if err := cw.Write([]string{string(s.Backend), t.Name, strconv.FormatInt(t.Rows, 10), formatTime(t.LastSynced)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeStatusTable(w io.Writer, s schema.StoreStatus, cfg *contract.Config) error {
	conn := statusLabel(s.Connected, "connected", "unreachable", cfg.UseColors)
	if _, err := fmt.Fprintf(w, "Backend: %s (%s) %s\n", s.Backend, s.Family, conn); err != nil {
		return err
	}
	data := make([][]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		data = append(data, []string{t.Name, strconv.FormatInt(t.Rows, 10), formatTime(t.LastSynced)})
	}
	return writeTable(w, []string{"Table", "Rows", "Last Synced"}, data)
}
