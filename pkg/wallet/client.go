package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	polygonUSDC        = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	polygonCTFExchange = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"

	// Positions smaller than this are venue dust and not worth reporting.
	positionSizeThreshold = 0.01
)

// erc20ReadABI covers the two read calls the funder checks need.
const erc20ReadABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// Client reads the funding state of agent funder wallets: gas and
// collateral from the chain, open positions from the Data API. It backs
// the balance command and the per-agent funding metrics.
type Client struct {
	rpcURL     string
	dataAPIURL string
	erc20      abi.ABI
	httpClient *http.Client
	logger     *zap.Logger
}

// Balances is one funder wallet's on-chain funding state.
type Balances struct {
	MATIC         *big.Int // gas, in wei
	USDC          *big.Int // collateral, in 6-decimal units
	USDCAllowance *big.Int // approved to the CTF Exchange, in 6-decimal units
}

// Position is one outcome-token holding of a funder wallet.
type Position struct {
	MarketSlug   string
	Outcome      string
	Size         float64
	Value        float64 // current USD value
	InitialValue float64 // cost basis USD
	CashPnL      float64 // USD P&L
	PercentPnL   float64 // percentage P&L
}

// dataAPIPosition is the Data API positions row.
type dataAPIPosition struct {
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	InitialValue float64 `json:"initialValue"`
	CurrentValue float64 `json:"currentValue"`
	CashPnL      float64 `json:"cashPnl"`
	PercentPnL   float64 `json:"percentPnl"`
	CurPrice     float64 `json:"curPrice"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
}

// NewClient creates a funder wallet client.
func NewClient(rpcURL, dataAPIURL string, logger *zap.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}

	if dataAPIURL == "" {
		return nil, errors.New("dataAPIURL cannot be empty")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	erc20, err := abi.JSON(strings.NewReader(erc20ReadABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 ABI: %w", err)
	}

	return &Client{
		rpcURL:     rpcURL,
		dataAPIURL: dataAPIURL,
		erc20:      erc20,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}, nil
}

// GetBalances fetches one funder wallet's gas, collateral and exchange
// allowance.
func (c *Client) GetBalances(ctx context.Context, funder common.Address) (*Balances, error) {
	eth, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("funder %s: dial RPC: %w", funder.Hex(), err)
	}
	defer eth.Close()

	matic, err := eth.BalanceAt(ctx, funder, nil)
	if err != nil {
		return nil, fmt.Errorf("funder %s: MATIC balance: %w", funder.Hex(), err)
	}

	usdc, err := c.erc20Call(ctx, eth, polygonUSDC, "balanceOf", funder)
	if err != nil {
		return nil, fmt.Errorf("funder %s: USDC balance: %w", funder.Hex(), err)
	}

	allowance, err := c.erc20Call(ctx, eth, polygonUSDC, "allowance",
		funder, common.HexToAddress(polygonCTFExchange))
	if err != nil {
		return nil, fmt.Errorf("funder %s: USDC allowance: %w", funder.Hex(), err)
	}

	c.logger.Debug("funder-balances-read",
		zap.String("funder", funder.Hex()),
		zap.String("matic-wei", matic.String()),
		zap.String("usdc-raw", usdc.String()))

	return &Balances{
		MATIC:         matic,
		USDC:          usdc,
		USDCAllowance: allowance,
	}, nil
}

// erc20Call performs one read-only token call and decodes the uint256
// result.
func (c *Client) erc20Call(
	ctx context.Context,
	eth *ethclient.Client,
	tokenAddr string,
	method string,
	args ...interface{},
) (*big.Int, error) {
	data, err := c.erc20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	token := common.HexToAddress(tokenAddr)
	result, err := eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	return new(big.Int).SetBytes(result), nil
}

// GetPositions fetches a funder wallet's open outcome-token positions
// from the Data API, dust filtered out.
func (c *Client) GetPositions(ctx context.Context, funder string) ([]Position, error) {
	url := fmt.Sprintf("%s/positions?user=%s&sizeThreshold=%v", c.dataAPIURL, funder, positionSizeThreshold)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("funder %s: create request: %w", funder, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("funder %s: positions request: %w", funder, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("funder %s: positions request: status %d", funder, resp.StatusCode)
	}

	var rows []dataAPIPosition
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("funder %s: decode positions: %w", funder, err)
	}

	positions := make([]Position, 0, len(rows))
	for _, row := range rows {
		if row.Size <= 0 {
			continue
		}
		positions = append(positions, Position{
			MarketSlug:   row.Slug,
			Outcome:      row.Outcome,
			Size:         row.Size,
			Value:        row.CurrentValue,
			InitialValue: row.InitialValue,
			CashPnL:      row.CashPnL,
			PercentPnL:   row.PercentPnL,
		})
	}

	c.logger.Debug("funder-positions-read",
		zap.String("funder", funder),
		zap.Int("count", len(positions)))

	return positions, nil
}
