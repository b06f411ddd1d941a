package execution

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"
)

const (
	defaultClobHost = "https://clob.polymarket.com"
	polygonChainID  = 137

	// All copy orders pay the venue's standard taker fee.
	copyFeeRateBps = "1000"

	zeroTaker = "0x0000000000000000000000000000000000000000"
)

// ClobClient submits signed orders to the Polymarket CLOB for one agent.
type ClobClient struct {
	baseURL       string
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string // EOA address (signer)
	funder        string // proxy address (maker), empty for EOA trading
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	httpClient    *http.Client
	logger        *zap.Logger
}

// ClobClientConfig holds per-agent CLOB credentials.
type ClobClientConfig struct {
	BaseURL    string
	APIKey     string
	Secret     string
	Passphrase string
	PrivateKey string
	Funder     string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewClobClient creates an order client for one agent. The signature type
// follows the funder: a proxy funder address signs as a Polymarket proxy,
// a bare key signs as an EOA.
func NewClobClient(cfg *ClobClientConfig) (*ClobClient, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, _ := privateKey.Public().(*ecdsa.PublicKey)
	address := crypto.PubkeyToAddress(*publicKey).Hex()

	signatureType := model.EOA
	if len(cfg.Funder) == 42 {
		signatureType = model.POLY_GNOSIS_SAFE
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultClobHost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ClobClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		privateKey:    privateKey,
		address:       address,
		funder:        cfg.Funder,
		signatureType: signatureType,
		orderBuilder:  builder.NewExchangeOrderBuilderImpl(big.NewInt(polygonChainID), nil),
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}, nil
}

// Address returns the signer's EOA address.
func (c *ClobClient) Address() string {
	return c.address
}

// SignedOrderJSON is the wire form of a signed order.
type SignedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// OrderResponse is the CLOB's reply to an order submission.
type OrderResponse struct {
	OrderID string `json:"orderID"`
	Status  string `json:"status"`
	Error   string `json:"error"`
}

// Accepted reports whether the venue took the order.
func (r *OrderResponse) Accepted() bool {
	return r.Error == "" && r.Status != "error" && r.Status != "rejected"
}

// SubmitOrder builds, signs and posts a fill-and-kill order for size shares
// at the given price.
func (c *ClobClient) SubmitOrder(ctx context.Context, tokenID string, price, size float64, side types.OrderSide) (*OrderResponse, error) {
	maker := c.address
	if c.funder != "" {
		maker = c.funder
	}

	// BUY pays USDC for shares, SELL the reverse.
	cost := size * price
	orderData := &model.OrderData{
		Maker:         maker,
		Taker:         zeroTaker,
		TokenId:       tokenID,
		Side:          model.BUY,
		MakerAmount:   usdToRawAmount(cost),
		TakerAmount:   usdToRawAmount(size),
		FeeRateBps:    copyFeeRateBps,
		Nonce:         "0",
		Signer:        c.address,
		Expiration:    "0",
		SignatureType: c.signatureType,
	}
	if side == types.OrderSell {
		orderData.Side = model.SELL
		orderData.MakerAmount = usdToRawAmount(size)
		orderData.TakerAmount = usdToRawAmount(cost)
	}

	signedOrder, err := c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, model.CTFExchange)
	if err != nil {
		return nil, fmt.Errorf("build order: %w", err)
	}

	return c.postOrder(ctx, signedOrder)
}

func (c *ClobClient) postOrder(ctx context.Context, order *model.SignedOrder) (*OrderResponse, error) {
	sideStr := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	jsonOrder := SignedOrderJSON{
		Salt:          order.Salt.Int64(),
		Maker:         order.Maker.Hex(),
		Signer:        order.Signer.Hex(),
		Taker:         order.Taker.Hex(),
		TokenID:       order.TokenId.String(),
		MakerAmount:   order.MakerAmount.String(),
		TakerAmount:   order.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    order.Expiration.String(),
		Nonce:         order.Nonce.String(),
		FeeRateBps:    order.FeeRateBps.String(),
		SignatureType: int(order.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(order.Signature),
	}

	// "owner" is the API key, not the maker address.
	orderRequest := map[string]interface{}{
		"order":     jsonOrder,
		"owner":     c.apiKey,
		"orderType": "FAK",
	}

	reqBody, err := json.Marshal(orderRequest)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	body, err := c.doSigned(ctx, http.MethodPost, "/order", reqBody)
	if err != nil {
		return nil, err
	}

	var orderResp OrderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &orderResp, nil
}

// GetMarket fetches the CLOB market row for a condition id, used to map
// outcome index to token id.
func (c *ClobClient) GetMarket(ctx context.Context, conditionID string) (*types.ClobMarket, error) {
	body, err := c.doPublic(ctx, "/markets/"+conditionID)
	if err != nil {
		return nil, err
	}

	var market types.ClobMarket
	if err := json.Unmarshal(body, &market); err != nil {
		return nil, fmt.Errorf("parse market: %w", err)
	}
	return &market, nil
}

// GetPrice fetches the current quote for a token on one book side.
func (c *ClobClient) GetPrice(ctx context.Context, tokenID string, side types.OrderSide) (float64, error) {
	path := fmt.Sprintf("/price?token_id=%s&side=%s", tokenID, side)
	body, err := c.doPublic(ctx, path)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("parse price: %w", err)
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", resp.Price, err)
	}
	return price, nil
}

// GetCollateralBalance returns the agent's USDC balance on the exchange,
// in whole dollars.
func (c *ClobClient) GetCollateralBalance(ctx context.Context) (float64, error) {
	return c.getBalanceAllowance(ctx, "/balance-allowance?asset_type=COLLATERAL")
}

// GetConditionalBalance returns the agent's share balance for one token.
func (c *ClobClient) GetConditionalBalance(ctx context.Context, tokenID string) (float64, error) {
	return c.getBalanceAllowance(ctx, "/balance-allowance?asset_type=CONDITIONAL&token_id="+tokenID)
}

func (c *ClobClient) getBalanceAllowance(ctx context.Context, path string) (float64, error) {
	body, err := c.doSigned(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("parse balance: %w", err)
	}

	raw, err := strconv.ParseFloat(resp.Balance, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", resp.Balance, err)
	}
	return raw / 1e6, nil
}

// doSigned performs an L2-authenticated request. The HMAC covers
// timestamp+method+path+body with the URL-safe base64 secret, matching the
// venue's Python client.
func (c *ClobClient) doSigned(ctx context.Context, method, path string, reqBody []byte) ([]byte, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	payload := timestamp + method + path + string(reqBody)

	secretBytes, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(payload))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = strings.NewReader(string(reqBody))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	req.Header.Set("POLY_ADDRESS", c.address)

	return c.do(req)
}

func (c *ClobClient) doPublic(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *ClobClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("clob error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func usdToRawAmount(usd float64) string {
	return strconv.FormatInt(int64(math.Round(usd*1e6)), 10)
}
