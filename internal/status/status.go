// Package status derives the single authoritative display state of a
// work order from its two sources of truth: the free-form spreadsheet
// status and the local execution record. Every consumer (list, detail,
// dashboard, report) must go through Derive; the precedence ladder is
// deliberately centralized here and nowhere else.
package status

import "strings"

// Severities understood by the UI.
const (
	SeverityDefault     = "default"
	SeverityWarning     = "warning"
	SeveritySuccess     = "success"
	SeverityDestructive = "destructive"
	SeverityReview      = "review"
)

// Closure results a technician can record at close time, embedded in
// the execution notes as a "Status: X" line.
const (
	ClosureConcluido   = "Concluído"
	ClosureSemExecucao = "Sem Execução"
)

// Badge is the display triple for one work order state.
type Badge struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Icon     string `json:"icon"`
}

// Execution is the slice of the local close-out record this function
// needs. Done reports whether the technician finished the close-out;
// Notes may carry the "Status: X" closure marker.
type Execution struct {
	Done  bool
	Notes string
}

// Derive maps (spreadsheet status, local execution record) to a Badge.
// Precedence, top-down, first match wins:
//
//  1. no execution record: raw mapping of the spreadsheet text;
//  2. spreadsheet already terminal: surface the closure result, with
//     an external "cancelado" overriding it;
//  3. execution closed but spreadsheet not caught up: closure result
//     suffixed "— Em análise" with review severity;
//  4. otherwise the order is being worked: "Em execução".
func Derive(osStatus string, exec *Execution) Badge {
	if exec == nil {
		return fromSheet(osStatus)
	}

	closure := ClosureResult(exec.Notes)
	norm := normalize(osStatus)

	switch {
	case strings.Contains(norm, "CANCEL"):
		return Badge{Label: "Cancelado", Severity: SeverityDestructive, Icon: "alert-triangle"}
	case strings.Contains(norm, "CONCLU") || strings.Contains(norm, "FECHAD"):
		if closure == ClosureSemExecucao {
			return Badge{Label: closure, Severity: SeverityDestructive, Icon: "alert-triangle"}
		}
		return Badge{Label: closure, Severity: SeveritySuccess, Icon: "check-circle"}
	case exec.Done:
		return Badge{Label: closure + " — Em análise", Severity: SeverityReview, Icon: "clock"}
	default:
		return Badge{Label: "Em execução", Severity: SeverityWarning, Icon: "loader"}
	}
}

// ClosureResult recovers the technician-chosen sub-classification from
// execution notes, defaulting to "Concluído" when no marker is present.
func ClosureResult(notes string) string {
	for _, line := range strings.Split(notes, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "Status:"); ok {
			if v := strings.TrimSpace(rest); v != "" {
				return v
			}
		}
	}
	return ClosureConcluido
}

// fromSheet maps the raw spreadsheet status text when no local record
// exists.
func fromSheet(osStatus string) Badge {
	norm := normalize(osStatus)
	switch {
	case strings.Contains(norm, "EXECU"):
		return Badge{Label: "Em execução", Severity: SeverityWarning, Icon: "loader"}
	case strings.Contains(norm, "CONCLU") || strings.Contains(norm, "FECHAD"):
		return Badge{Label: "Concluído", Severity: SeveritySuccess, Icon: "check-circle"}
	case strings.Contains(norm, "CANCEL"):
		return Badge{Label: "Cancelado", Severity: SeverityDestructive, Icon: "alert-triangle"}
	case osStatus == "":
		return Badge{Label: "Pendente", Severity: SeverityDefault, Icon: "circle"}
	default:
		return Badge{Label: osStatus, Severity: SeverityDefault, Icon: "circle"}
	}
}

// IsTerminal reports whether a spreadsheet status is one of the terminal
// states (done, cancelled, closed). Used by the promotion step.
func IsTerminal(osStatus string) bool {
	norm := normalize(osStatus)
	return strings.Contains(norm, "CONCLU") ||
		strings.Contains(norm, "CANCEL") ||
		strings.Contains(norm, "FECHAD")
}

var accentReplacer = strings.NewReplacer(
	"Á", "A", "Â", "A", "Ã", "A",
	"É", "E", "Ê", "E",
	"Í", "I",
	"Ó", "O", "Ô", "O", "Õ", "O",
	"Ú", "U",
	"Ç", "C",
)

// normalize uppercases and strips the accents that appear in the status
// column so matching survives the sheet's inconsistent typing.
func normalize(s string) string {
	return accentReplacer.Replace(strings.ToUpper(s))
}
