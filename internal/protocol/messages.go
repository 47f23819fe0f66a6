package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
	Auth            *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	ResumeToken string `json:"resume_token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	PlayerID        string         `json:"player_id"`
	ResumeToken     string         `json:"resume_token"`
	StoreParams     StoreParams    `json:"store_params"`
	Containers      []ContainerRef `json:"containers"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type StoreParams struct {
	TickRateHz int `json:"tick_rate_hz"`
}

// ContainerRef announces a container handle the player may address.
type ContainerRef struct {
	Container string `json:"container"`
	Role      string `json:"role"`
	Capacity  int    `json:"capacity"`
}

type CatalogDigests struct {
	ItemPalette DigestRef `json:"item_palette"`
	ItemDefs    string    `json:"item_defs_digest"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client): one catalog as a single part.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"`   // e.g. "item_palette"
	Digest          string      `json:"digest"` // sha256 hex
	Data            interface{} `json:"data"`
}

// ItemStack is the wire form of an engine stack.
type ItemStack struct {
	Item     uint16 `json:"item"`
	Count    int    `json:"count"`
	MaxStack int    `json:"max_stack"`
}
