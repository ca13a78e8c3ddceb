package flow

// Diagnostic reports whether the gateway configuration is usable without
// calling the gateway.
type Diagnostic struct {
	OK         bool            `json:"ok" yaml:"ok"`
	Env        map[string]bool `json:"env" yaml:"env"`
	SignVerify *SignCheck      `json:"signVerify,omitempty" yaml:"signVerify,omitempty"`
	Errors     []string        `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type SignCheck struct {
	Signed   string `json:"signed" yaml:"signed"`
	Verified bool   `json:"verified" yaml:"verified"`
}

func Diagnose(cfg Config) Diagnostic {
	d := Diagnostic{Env: map[string]bool{
		"FLOW_API_KEY":    cfg.APIKey != "",
		"FLOW_SECRET_KEY": cfg.SecretKey != "",
		"FLOW_BASE_URL":   cfg.BaseURL != "",
		"APP_BASE_URL":    cfg.AppBaseURL != "",
	}}
	for _, k := range []string{"FLOW_API_KEY", "FLOW_SECRET_KEY", "FLOW_BASE_URL", "APP_BASE_URL"} {
		if !d.Env[k] {
			d.Errors = append(d.Errors, "Missing env var: "+k)
		}
	}

	if cfg.APIKey != "" && cfg.SecretKey != "" {
		signer, err := NewSigner(cfg.SecretKey)
		if err != nil {
			d.Errors = append(d.Errors, "Sign/verify error: "+err.Error())
		} else {
			p := Params{"apiKey": cfg.APIKey, "commerceOrder": "diag-order"}
			p.SetInt("amount", 12345)
			sig := signer.Sign(p)
			ok := signer.Verify(p, sig)
			d.SignVerify = &SignCheck{Signed: Obfuscate(sig), Verified: ok}
			if !ok {
				d.Errors = append(d.Errors, "Signature verification failed")
			}
		}
	}

	d.OK = len(d.Errors) == 0
	return d
}
