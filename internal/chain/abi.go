package chain

// Minimal ABIs for the methods the service calls.

const erc20ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

const opinionCoreABI = `[
	{"type":"function","name":"getOpinionDetails","stateMutability":"view",
	 "inputs":[{"name":"opinionId","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple","components":[
		{"name":"lastPrice","type":"uint96"},
		{"name":"nextPrice","type":"uint96"},
		{"name":"totalVolume","type":"uint96"},
		{"name":"salePrice","type":"uint96"},
		{"name":"creator","type":"address"},
		{"name":"questionOwner","type":"address"},
		{"name":"currentAnswerOwner","type":"address"},
		{"name":"isActive","type":"bool"},
		{"name":"question","type":"string"},
		{"name":"currentAnswer","type":"string"},
		{"name":"currentAnswerDescription","type":"string"},
		{"name":"ipfsHash","type":"string"},
		{"name":"link","type":"string"},
		{"name":"categories","type":"string[]"}
	 ]}]},
	{"type":"function","name":"submitAnswer","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"opinionId","type":"uint256"},
		{"name":"answer","type":"string"},
		{"name":"description","type":"string"},
		{"name":"link","type":"string"}
	 ],"outputs":[]},
	{"type":"function","name":"createOpinion","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"question","type":"string"},
		{"name":"answer","type":"string"},
		{"name":"description","type":"string"},
		{"name":"initialPrice","type":"uint96"},
		{"name":"opinionCategories","type":"string[]"}
	 ],"outputs":[]}
]`

const poolManagerABI = `[
	{"type":"function","name":"getPoolDetails","stateMutability":"view",
	 "inputs":[{"name":"poolId","type":"uint256"}],
	 "outputs":[
		{"name":"info","type":"tuple","components":[
			{"name":"id","type":"uint256"},
			{"name":"opinionId","type":"uint256"},
			{"name":"proposedAnswer","type":"string"},
			{"name":"totalAmount","type":"uint96"},
			{"name":"deadline","type":"uint32"},
			{"name":"creator","type":"address"},
			{"name":"status","type":"uint8"},
			{"name":"name","type":"string"},
			{"name":"ipfsHash","type":"string"},
			{"name":"targetPrice","type":"uint96"}
		]},
		{"name":"currentPrice","type":"uint256"},
		{"name":"remainingAmount","type":"uint256"},
		{"name":"timeRemaining","type":"uint256"}
	 ]},
	{"type":"function","name":"getPoolContributors","stateMutability":"view",
	 "inputs":[{"name":"poolId","type":"uint256"}],
	 "outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"createPool","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"opinionId","type":"uint256"},
		{"name":"proposedAnswer","type":"string"},
		{"name":"deadline","type":"uint32"},
		{"name":"initialContribution","type":"uint96"},
		{"name":"name","type":"string"},
		{"name":"ipfsHash","type":"string"}
	 ],"outputs":[]},
	{"type":"function","name":"contributeToPool","stateMutability":"nonpayable",
	 "inputs":[{"name":"poolId","type":"uint256"},{"name":"amount","type":"uint96"}],
	 "outputs":[]},
	{"type":"function","name":"completePool","stateMutability":"nonpayable",
	 "inputs":[{"name":"poolId","type":"uint256"}],
	 "outputs":[]}
]`
