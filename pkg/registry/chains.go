package registry

import "time"

const (
	Algorand           ChainID = "algorand"
	Avalanche          ChainID = "avalanche"
	AvalancheFuji      ChainID = "avalanche-fuji"
	Bitcoin            ChainID = "bitcoin"
	BitcoinCash        ChainID = "bitcoin-cash"
	BitcoinCashTestnet ChainID = "bitcoin-cash-testnet"
	BitcoinSignet      ChainID = "bitcoin-signet"
	BitcoinSV          ChainID = "bitcoin-sv"
	BitcoinTestnet     ChainID = "bitcoin-testnet"
	Casper             ChainID = "casper"
	Celo               ChainID = "celo"
	Dash               ChainID = "dash"
	DashTestnet        ChainID = "dash-testnet"
	Doge               ChainID = "doge"
	ECash              ChainID = "ecash"
	Ethereum           ChainID = "ethereum"
	EthereumClassic    ChainID = "ethereum-classic"
	EthereumSepolia    ChainID = "ethereum-sepolia"
	Groestlcoin        ChainID = "groestlcoin"
	HederaHashgraph    ChainID = "hedera"
	Litecoin           ChainID = "litecoin"
	LitecoinTestnet    ChainID = "litecoin-testnet"
	Stacks             ChainID = "stacks"
	Tezos              ChainID = "tezos"
	ZCash              ChainID = "zcash"
)

var chains = map[ChainID]ChainMeta{
	Algorand:           {Ticker: "ALGO", ShortName: "Algorand", FullName: "Algorand", BlockTime: 4 * time.Second, Network: Mainnet},
	Avalanche:          {Ticker: "AVAX", ShortName: "Avalanche", FullName: "Avalanche C-Chain", BlockTime: 2 * time.Second, Network: Mainnet},
	AvalancheFuji:      {Ticker: "tAVAX", ShortName: "Avalanche Fuji", FullName: "Avalanche Fuji C-Chain", BlockTime: 2 * time.Second, Network: Testnet},
	Bitcoin:            {Ticker: "BTC", ShortName: "Bitcoin", FullName: "Bitcoin", BlockTime: 600 * time.Second, Network: Mainnet},
	BitcoinCash:        {Ticker: "BCH", ShortName: "Bitcoin Cash", FullName: "Bitcoin Cash", BlockTime: 600 * time.Second, Network: Mainnet},
	BitcoinCashTestnet: {Ticker: "tBCH", ShortName: "Bitcoin Cash Testnet", FullName: "Bitcoin Cash Testnet", BlockTime: 600 * time.Second, Network: Testnet},
	BitcoinSignet:      {Ticker: "sBTC", ShortName: "Bitcoin Signet", FullName: "Bitcoin Signet", BlockTime: 600 * time.Second, Network: Signet},
	BitcoinSV:          {Ticker: "BSV", ShortName: "Bitcoin SV", FullName: "Bitcoin Satoshi Vision", BlockTime: 600 * time.Second, Network: Mainnet},
	BitcoinTestnet:     {Ticker: "tBTC", ShortName: "Bitcoin Testnet", FullName: "Bitcoin Testnet", BlockTime: 600 * time.Second, Network: Testnet},
	Casper:             {Ticker: "CSPR", ShortName: "Casper", FullName: "Casper Network", BlockTime: 16 * time.Second, Network: Mainnet},
	Celo:               {Ticker: "CELO", ShortName: "Celo", FullName: "Celo", BlockTime: 5 * time.Second, Network: Mainnet},
	Dash:               {Ticker: "DASH", ShortName: "Dash", FullName: "Dash", BlockTime: 150 * time.Second, Network: Mainnet},
	DashTestnet:        {Ticker: "tDASH", ShortName: "Dash Testnet", FullName: "Dash Testnet", BlockTime: 150 * time.Second, Network: Testnet},
	Doge:               {Ticker: "DOGE", ShortName: "Doge", FullName: "Dogecoin", BlockTime: 60 * time.Second, Network: Mainnet},
	ECash:              {Ticker: "XEC", ShortName: "eCash", FullName: "eCash", BlockTime: 600 * time.Second, Network: Mainnet},
	Ethereum:           {Ticker: "ETH", ShortName: "Ethereum", FullName: "Ethereum", BlockTime: 12 * time.Second, Network: Mainnet},
	EthereumClassic:    {Ticker: "ETC", ShortName: "Ethereum Classic", FullName: "Ethereum Classic", BlockTime: 13 * time.Second, Network: Mainnet},
	EthereumSepolia:    {Ticker: "sETH", ShortName: "Ethereum Sepolia", FullName: "Ethereum Sepolia Testnet", BlockTime: 12 * time.Second, Network: Testnet},
	Groestlcoin:        {Ticker: "GRS", ShortName: "Groestlcoin", FullName: "Groestlcoin", BlockTime: 60 * time.Second, Network: Mainnet},
	HederaHashgraph:    {Ticker: "HBAR", ShortName: "Hedera", FullName: "Hedera Hashgraph", BlockTime: 5 * time.Second, Network: Mainnet},
	Litecoin:           {Ticker: "LTC", ShortName: "Litecoin", FullName: "Litecoin", BlockTime: 150 * time.Second, Network: Mainnet},
	LitecoinTestnet:    {Ticker: "tLTC", ShortName: "Litecoin Testnet", FullName: "Litecoin Testnet", BlockTime: 150 * time.Second, Network: Testnet},
	Stacks:             {Ticker: "STX", ShortName: "Stacks", FullName: "Stacks", BlockTime: 600 * time.Second, Network: Mainnet},
	Tezos:              {Ticker: "XTZ", ShortName: "Tezos", FullName: "Tezos", BlockTime: 10 * time.Second, Network: Mainnet},
	ZCash:              {Ticker: "ZEC", ShortName: "Zcash", FullName: "Zcash", BlockTime: 75 * time.Second, Network: Mainnet},
}

var chainsByTicker = func() map[string]ChainID {
	m := make(map[string]ChainID, len(chains))
	for id, meta := range chains {
		m[meta.Ticker] = id
	}
	return m
}()
