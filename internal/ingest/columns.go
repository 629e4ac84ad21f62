package ingest

import (
	"strings"

	"tenderdesk/api/internal/store"
)

// candidateHeaders maps each canonical field onto the header spellings seen in
// the source spreadsheets, most specific first. Matching is exact after
// normalization, never fuzzy: when a sheet renames a column, the fix is to add
// the new spelling here, not to loosen the matcher.
type candidateHeaders struct {
	field   string
	headers []string
}

var columnCandidates = []candidateHeaders{
	{store.FieldKey, []string{"NUMERO DE LA LICITACIÓN", "NUMERO DE LA LICITACION", "CLAVE", "EXPEDIENTE"}},
	{store.FieldTitle, []string{"TITULO", "DESCRIPCION", "ESPECIALIDAD SERV.INT (LAB)"}},
	{store.FieldInstitution, []string{"CONVOCANTE", "INSTITUCION"}},
	{store.FieldUnit, []string{"UNIDAD", "HOSPITAL"}},
	{store.FieldState, []string{"ESTADO"}},
	{store.FieldIntegrator, []string{"DISTRIBUIDOR ACTUAL", "INTEGRADOR", "LICITANTE GANADOR"}},
	{store.FieldEstimatedAmount, []string{"MONTO", "MONTO ESTIMADO", "IMPORTE"}},
	{store.FieldPublicationDate, []string{"FECHA DE PUBLICACIÓN", "FECHA DE PUBLICACION", "PUBLICACION"}},
	{store.FieldClarificationMeetingDate, []string{"JUNTA DE ACLARACIONES", "JA", "JUNTA"}},
	{store.FieldBidOpeningDate, []string{"APERTURA", "PROPUESTA ECONOMICA"}},
	{store.FieldAwardDate, []string{"FALLO"}},
	{store.FieldContractSignDate, []string{"FIRMA", "FIRMA CONTRATO", "FIRMA DE CONTRATO"}},
	{store.FieldRequestedSupport, []string{"PIDIO APOYO", "SOLICITO APOYO", "APOYO"}},
	{store.FieldLetterSent, []string{"CARTA ENVIADA", "CARTA", "OFICIO"}},
	{store.FieldStatus, []string{"ESTATUS DE LA LICITACION", "ESTATUS"}},
	{store.FieldOwner, []string{"ELABORO", "RESPONSABLE"}},
	{store.FieldLink, []string{"LINK", "ENLACE"}},
	{store.FieldNotes, []string{"NOTAS", "OBSERVACIONES"}},
}

// NormalizeHeader folds case, trims, and collapses internal whitespace so
// "  Numero de la  Licitacion " and "NUMERO DE LA LICITACION" match.
func NormalizeHeader(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// Resolution maps canonical fields to the actual header found in the sheet.
type Resolution struct {
	Columns    map[string]string
	MissingKey bool
}

// ResolveColumns matches the sheet's headers against the candidate table.
// A sheet without any recognizable key column is flagged rather than failed;
// the reconciler reports zero effect for it instead of guessing an identity.
func ResolveColumns(headers []string) Resolution {
	lookup := make(map[string]string, len(headers))
	for _, h := range headers {
		norm := NormalizeHeader(h)
		if _, seen := lookup[norm]; !seen {
			lookup[norm] = h
		}
	}

	res := Resolution{Columns: make(map[string]string)}
	for _, cand := range columnCandidates {
		for _, spelling := range cand.headers {
			if actual, ok := lookup[NormalizeHeader(spelling)]; ok {
				res.Columns[cand.field] = actual
				break
			}
		}
	}
	if _, ok := res.Columns[store.FieldKey]; !ok {
		res.MissingKey = true
	}
	return res
}
