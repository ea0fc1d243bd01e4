package configurator

// Validation lists missing required selections keyed by field.
type Validation struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors"`
}

// Validate checks that a product, a color and a material are selected.
// Features are optional.
func Validate(cfg Configuration) Validation {
	errs := map[string]string{}
	if cfg.ProductID == "" {
		errs["product"] = "Please select a product"
	}
	if cfg.Color == nil {
		errs["color"] = "Please select a color"
	}
	if cfg.Material == nil {
		errs["material"] = "Please select a material"
	}
	return Validation{Valid: len(errs) == 0, Errors: errs}
}
