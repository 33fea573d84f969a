package dataset

// Kind is the value type of a property.
type Kind string

const (
	KindDouble Kind = "double"
	KindInt    Kind = "int"
	KindBool   Kind = "bool"
	KindString Kind = "string"
)

// Property describes one column of the property table.
type Property struct {
	Name string
	Kind Kind
}

// Properties lists every generated property in column order.
var Properties = []Property{
	{"cost", KindDouble},
	{"carbon_A1", KindDouble},
	{"carbon_A2", KindDouble},
	{"carbon_A3", KindDouble},
	{"carbon_A4", KindDouble},
	{"carbon_A5", KindDouble},
	{"weight", KindDouble},
	{"temperature", KindDouble},
	{"pressure", KindDouble},
	{"velocity_x", KindDouble},
	{"velocity_y", KindDouble},
	{"velocity_z", KindDouble},
	{"stress", KindDouble},
	{"strain", KindDouble},
	{"efficiency", KindDouble},
	{"lifespan", KindInt},
	{"is_active", KindBool},
	{"supplier_id", KindString},
	{"material_code", KindString},
	{"install_date", KindString},
	{"payload", KindString},
}

// MultiProperties is the subset read per prim by multi-property scenarios.
var MultiProperties = []string{
	"cost",
	"carbon_A1",
	"weight",
	"temperature",
	"is_active",
	"supplier_id",
}

// IsProperty reports whether name is a generated property.
func IsProperty(name string) bool {
	for _, p := range Properties {
		if p.Name == name {
			return true
		}
	}

	return false
}

// PropertyRow is one prim's properties. The same struct is the JSON Lines
// record and the Parquet schema.
type PropertyRow struct {
	Path         string  `json:"path" parquet:"path"`
	Cost         float64 `json:"cost" parquet:"cost"`
	CarbonA1     float64 `json:"carbon_A1" parquet:"carbon_A1"`
	CarbonA2     float64 `json:"carbon_A2" parquet:"carbon_A2"`
	CarbonA3     float64 `json:"carbon_A3" parquet:"carbon_A3"`
	CarbonA4     float64 `json:"carbon_A4" parquet:"carbon_A4"`
	CarbonA5     float64 `json:"carbon_A5" parquet:"carbon_A5"`
	Weight       float64 `json:"weight" parquet:"weight"`
	Temperature  float64 `json:"temperature" parquet:"temperature"`
	Pressure     float64 `json:"pressure" parquet:"pressure"`
	VelocityX    float64 `json:"velocity_x" parquet:"velocity_x"`
	VelocityY    float64 `json:"velocity_y" parquet:"velocity_y"`
	VelocityZ    float64 `json:"velocity_z" parquet:"velocity_z"`
	Stress       float64 `json:"stress" parquet:"stress"`
	Strain       float64 `json:"strain" parquet:"strain"`
	Efficiency   float64 `json:"efficiency" parquet:"efficiency"`
	Lifespan     int64   `json:"lifespan" parquet:"lifespan"`
	IsActive     bool    `json:"is_active" parquet:"is_active"`
	SupplierID   string  `json:"supplier_id" parquet:"supplier_id"`
	MaterialCode string  `json:"material_code" parquet:"material_code"`
	InstallDate  string  `json:"install_date" parquet:"install_date"`
	Payload      string  `json:"payload" parquet:"payload"`
}

// Value returns the named property of the row.
func (r *PropertyRow) Value(name string) (any, bool) {
	switch name {
	case "cost":
		return r.Cost, true
	case "carbon_A1":
		return r.CarbonA1, true
	case "carbon_A2":
		return r.CarbonA2, true
	case "carbon_A3":
		return r.CarbonA3, true
	case "carbon_A4":
		return r.CarbonA4, true
	case "carbon_A5":
		return r.CarbonA5, true
	case "weight":
		return r.Weight, true
	case "temperature":
		return r.Temperature, true
	case "pressure":
		return r.Pressure, true
	case "velocity_x":
		return r.VelocityX, true
	case "velocity_y":
		return r.VelocityY, true
	case "velocity_z":
		return r.VelocityZ, true
	case "stress":
		return r.Stress, true
	case "strain":
		return r.Strain, true
	case "efficiency":
		return r.Efficiency, true
	case "lifespan":
		return r.Lifespan, true
	case "is_active":
		return r.IsActive, true
	case "supplier_id":
		return r.SupplierID, true
	case "material_code":
		return r.MaterialCode, true
	case "install_date":
		return r.InstallDate, true
	case "payload":
		return r.Payload, true
	default:
		return nil, false
	}
}
