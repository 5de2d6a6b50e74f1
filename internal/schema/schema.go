// Package schema maps uploaded OSS spreadsheets onto the canonical 33-field
// record layout and serializes normalized tables back to xlsx.
package schema

import (
	"strings"
)

// Canonical OSS field names.
const (
	FieldProjectID        = "Id Proyek"
	FieldProjectType      = "Uraian_Jenis_Proyek"
	FieldNIB              = "Nib"
	FieldCompanyName      = "Nama Perusahaan"
	FieldIssueDate        = "Tanggal Terbit Oss"
	FieldInvestmentStatus = "Uraian Status Penanaman Modal"
	FieldCompanyType      = "Uraian Jenis Perusahaan"
	FieldProjectRisk      = "Uraian Risiko Proyek"
	FieldProjectName      = "nama_proyek"
	FieldBusinessScale    = "Uraian Skala Usaha"
	FieldAddress          = "Alamat Usaha"
	FieldRegency          = "Kab Kota Usaha"
	FieldSubDistrict      = "kecamatan_usaha"
	FieldVillage          = "kelurahan_usaha"
	FieldLongitude        = "longitude"
	FieldLatitude         = "latitude"
	FieldKBLI             = "Kbli"
	FieldKBLITitle        = "Judul Kbli"
	FieldSector           = "KL/Sektor Pembina"
	FieldUserName         = "Nama User"
	FieldUserIdentity     = "Nomor Identitas User"
	FieldEmail            = "Email"
	FieldPhone            = "Nomor Telp"
	FieldLandArea         = "luas_tanah"
	FieldLandUnit         = "satuan_tanah"
	FieldMachinery        = "Mesin Peralatan"
	FieldImportMachinery  = "Mesin Peralatan Impor"
	FieldLandPurchase     = "Pembelian Pematangan Tanah"
	FieldBuildings        = "Bangunan Gedung"
	FieldWorkingCapital   = "Modal Kerja"
	FieldOther            = "Lain Lain"
	FieldInvestment       = "Jumlah Investasi"
	FieldWorkers          = "TKI"
)

// Schema is an ordered list of field names with one designated date field.
type Schema struct {
	Fields    []string
	DateField string
}

// OSS is the canonical layout of the licensing system's project export.
var OSS = Schema{
	Fields: []string{
		FieldProjectID, FieldProjectType, FieldNIB, FieldCompanyName, FieldIssueDate,
		FieldInvestmentStatus, FieldCompanyType, FieldProjectRisk, FieldProjectName,
		FieldBusinessScale, FieldAddress, FieldRegency, FieldSubDistrict, FieldVillage,
		FieldLongitude, FieldLatitude, FieldKBLI, FieldKBLITitle, FieldSector,
		FieldUserName, FieldUserIdentity, FieldEmail, FieldPhone, FieldLandArea,
		FieldLandUnit, FieldMachinery, FieldImportMachinery, FieldLandPurchase,
		FieldBuildings, FieldWorkingCapital, FieldOther, FieldInvestment, FieldWorkers,
	},
	DateField: FieldIssueDate,
}

// Index returns the position of field, or -1.
func (s Schema) Index(field string) int {
	for i, f := range s.Fields {
		if f == field {
			return i
		}
	}
	return -1
}

// DateIndex is the position of the date field, or -1 if the schema has none.
func (s Schema) DateIndex() int {
	if s.DateField == "" {
		return -1
	}
	return s.Index(s.DateField)
}

// rowNumberHeaders are headers of the ordinal column some exports prepend.
var rowNumberHeaders = map[string]bool{"no": true, "no.": true, "#": true, "nomor": true}

func isRowNumberHeader(h string) bool {
	return rowNumberHeaders[foldHeader(h)]
}

// foldHeader makes header comparison insensitive to case, surrounding space
// and the space/underscore spelling differences seen in real exports.
func foldHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	return strings.Join(strings.Fields(h), " ")
}

// HeaderIndex finds name among headers using the same loose comparison as
// drift detection. It returns -1 if absent.
func HeaderIndex(headers []string, name string) int {
	want := foldHeader(name)
	for i, h := range headers {
		if foldHeader(h) == want {
			return i
		}
	}
	return -1
}
