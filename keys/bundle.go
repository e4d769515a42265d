package keys

// Pair is the P-256 key set understood by the graph database: a signing pair
// (Pub/Priv) and an encryption pair (Epub/Epriv).
type Pair struct {
	Pub   string `json:"pub"`
	Priv  string `json:"priv"`
	Epub  string `json:"epub"`
	Epriv string `json:"epriv"`
}

// Valid reports whether every component of the pair is populated.
func (p Pair) Valid() bool {
	return p.Pub != "" && p.Priv != "" && p.Epub != "" && p.Epriv != ""
}

// ChainKey is a secp256k1 key with its chain-specific address.
type ChainKey struct {
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
	Address    string `json:"address"`
}

// Bundle is the output of Derive. Fields for key types that were not
// requested are left empty.
type Bundle struct {
	Pub   string `json:"pub,omitempty"`
	Priv  string `json:"priv,omitempty"`
	Epub  string `json:"epub,omitempty"`
	Epriv string `json:"epriv,omitempty"`

	Bitcoin  *ChainKey `json:"secp256k1Bitcoin,omitempty"`
	Ethereum *ChainKey `json:"secp256k1Ethereum,omitempty"`
}

// Pair returns the P-256 part of the bundle.
func (b *Bundle) Pair() Pair {
	return Pair{Pub: b.Pub, Priv: b.Priv, Epub: b.Epub, Epriv: b.Epriv}
}
