package models

// ConnectionConfigResponse is the API response for GET
// /api/v1/connection/config.
type ConnectionConfigResponse struct {
	IPAddress        string `json:"ip_address"`
	Port             int    `json:"port"`
	ServerAddressHex string `json:"server_addr_hex"`
	ClientAddressHex string `json:"client_addr_hex"`
	TimeoutMs        int    `json:"timeout_ms"`
}
