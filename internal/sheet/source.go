package sheet

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Sheets is one full export of the four logical sheets, in the order
// they are processed. The physical spreadsheet format is the
// collaborator's concern; it hands the engine this shape.
type Sheets struct {
	WorkOrders []Row `json:"ordens"`
	Caixas     []Row `json:"caixas"`
	Lancas     []Row `json:"lancas"`
	Crews      []Row `json:"equipes"`
}

// TotalRows returns the row count across all four sheets.
func (s Sheets) TotalRows() int {
	return len(s.WorkOrders) + len(s.Caixas) + len(s.Lancas) + len(s.Crews)
}

// Read decodes a Sheets JSON document from r.
func Read(r io.Reader) (Sheets, error) {
	var s Sheets
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Sheets{}, fmt.Errorf("sheet: decode: %w", err)
	}
	return s, nil
}

// Load reads a Sheets JSON document from a file.
func Load(path string) (Sheets, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sheets{}, fmt.Errorf("sheet: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}
