package types

// DonorConfig maps one agent to the donor wallets it copies.
type DonorConfig struct {
	AgentID       string `json:"agentId"`
	ProxyWallet   string `json:"proxyWallet"`
	OnchainWallet string `json:"onchainWallet"`
}

// AgentConfig is the static definition of one managed agent.
type AgentConfig struct {
	ID     string `json:"id"`
	Wallet string `json:"wallet"` // the agent's own proxy wallet, monitored for manual trades
}
