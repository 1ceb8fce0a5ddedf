package sheet

import (
	"fmt"

	"github.com/mveloso/campo/internal/models"
)

// DecodedUnit carries a decoded caixa/lança plus whether its key came
// from a stable external id. When HasExternalID is false the key is
// derived from (work-order id, row position), which is fragile under
// row reordering; the engine logs the fallback.
type DecodedUnit[T any] struct {
	Record        T
	HasExternalID bool
}

// DecodeWorkOrderRow maps a work-order row to a WorkOrder. The returned
// ID is empty when the row carries neither the external id nor the
// human code; such rows are skipped by the engine.
func DecodeWorkOrderRow(r Row) models.WorkOrder {
	id := r.Str("ID", "ID OS")
	code := r.Str("OS", "CODIGO", "CÓDIGO")
	if id == "" {
		id = code
	}
	if code == "" {
		code = id
	}
	return models.WorkOrder{
		ID:             id,
		Code:           code,
		Status:         r.Str("STATUS"),
		Location:       r.Str("LOCALIDADE", "LOCAL"),
		Region:         r.Str("REGIAO", "REGIÃO"),
		EntryDate:      r.Date("DATA ENTRADA", "ENTRADA"),
		ScheduledDate:  r.Date("DATA PROGRAMADA", "PROGRAMACAO", "PROGRAMAÇÃO"),
		CompletionDate: r.Date("DATA CONCLUSAO", "DATA CONCLUSÃO"),
		Value:          r.Num("VALOR"),
		PlannedCaixas:  r.Int("QTD CAIXAS", "CAIXAS"),
		PlannedLancas:  r.Int("QTD LANCAS", "QTD LANÇAS", "LANCAS"),
		Observations:   r.Str("OBSERVACOES", "OBSERVAÇÕES", "OBS"),
	}
}

// DecodeCaixaRow maps a caixa row to a Caixa. pos is the zero-based row
// position within the sheet, used for the synthetic-key fallback when
// the row has no stable id.
func DecodeCaixaRow(r Row, pos int) DecodedUnit[models.Caixa] {
	osID := r.Str("ID OS", "OS")
	extID := r.Str("ID", "ID CAIXA")
	id := extID
	if id == "" && osID != "" {
		id = syntheticKey(osID, "caixa", pos)
	}
	return DecodedUnit[models.Caixa]{
		Record: models.Caixa{
			ID:             id,
			WorkOrderID:    osID,
			Label:          r.Str("CAIXA", "NOME"),
			Address:        r.Str("ENDERECO", "ENDEREÇO"),
			Coordinates:    r.Str("COORDENADAS", "COORD"),
			BoxType:        r.Str("TIPO"),
			Status:         r.Str("STATUS"),
			CrewID:         r.Str("ID EQUIPE"),
			CrewName:       r.Str("EQUIPE"),
			Note:           r.Str("OBSERVACAO", "OBSERVAÇÃO", "OBS"),
			MeasuredValue:  r.Num("MEDICAO", "MEDIÇÃO"),
			CompletionDate: r.Date("DATA CONCLUSAO", "DATA CONCLUSÃO"),
		},
		HasExternalID: extID != "",
	}
}

// DecodeLancaRow maps a cable-launch row to a Lanca, with the same
// synthetic-key fallback as caixas.
func DecodeLancaRow(r Row, pos int) DecodedUnit[models.Lanca] {
	osID := r.Str("ID OS", "OS")
	extID := r.Str("ID", "ID LANCA", "ID LANÇA")
	id := extID
	if id == "" && osID != "" {
		id = syntheticKey(osID, "lanca", pos)
	}
	return DecodedUnit[models.Lanca]{
		Record: models.Lanca{
			ID:             id,
			WorkOrderID:    osID,
			FromPoint:      r.Str("DE", "PONTO A"),
			ToPoint:        r.Str("PARA", "PONTO B"),
			CableType:      r.Str("CABO", "TIPO CABO"),
			PlannedLength:  r.Num("METRAGEM", "METRAGEM PREVISTA"),
			LaidLength:     r.Num("METRAGEM LANCADA", "METRAGEM LANÇADA"),
			Status:         r.Str("STATUS"),
			CrewID:         r.Str("ID EQUIPE"),
			CrewName:       r.Str("EQUIPE"),
			Note:           r.Str("OBSERVACAO", "OBSERVAÇÃO", "OBS"),
			CompletionDate: r.Date("DATA CONCLUSAO", "DATA CONCLUSÃO"),
		},
		HasExternalID: extID != "",
	}
}

// DecodeCrewRow maps a crew-directory row to a Crew. Login and
// credential fields are left empty; the engine generates them for new
// entries and never touches them on existing ones.
func DecodeCrewRow(r Row) models.Crew {
	role := models.RoleTecnico
	if r.Str("PERFIL", "ROLE") == "admin" {
		role = models.RoleAdmin
	}
	return models.Crew{
		ID:     r.Str("ID", "ID EQUIPE"),
		Name:   r.Str("EQUIPE", "NOME"),
		Role:   role,
		Region: r.Str("REGIAO", "REGIÃO"),
		Phone:  r.Str("TELEFONE", "FONE"),
	}
}

// syntheticKey derives a stable-enough key for rows lacking an external
// id. Fragile if the source reorders rows; see the project design notes.
func syntheticKey(osID, kind string, pos int) string {
	return fmt.Sprintf("%s#%s:%d", osID, kind, pos)
}
