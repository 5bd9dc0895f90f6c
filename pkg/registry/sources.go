package registry

const (
	BitGo        SourceID = "bitgo"
	BlockCypher  SourceID = "blockcypher"
	Blockchain   SourceID = "blockchain"
	Blockchair   SourceID = "blockchair"
	ChainMonitor SourceID = "chainmonitor"
	EVMRPC       SourceID = "evmrpc"
	MempoolSpace SourceID = "mempoolspace"
	Other        SourceID = "other"
)

var sources = map[SourceID]SourceMeta{
	BitGo:        {ShortName: "BitGo", FullName: "BitGo", URL: "https://www.bitgo.com"},
	BlockCypher:  {ShortName: "BlockCypher", FullName: "BlockCypher", URL: "https://www.blockcypher.com"},
	Blockchain:   {ShortName: "Blockchain", FullName: "Blockchain.com", URL: "https://www.blockchain.com/explorer"},
	Blockchair:   {ShortName: "Blockchair", FullName: "Blockchair", URL: "https://blockchair.com"},
	ChainMonitor: {ShortName: "ChainMonitor", FullName: "Chain Monitor (mirror)", URL: ""},
	EVMRPC:       {ShortName: "RPC", FullName: "EVM JSON-RPC node", URL: ""},
	MempoolSpace: {ShortName: "Mempool", FullName: "mempool.space", URL: "https://mempool.space"},
	Other:        {ShortName: "Other", FullName: "Single-chain explorers", URL: ""},
}
