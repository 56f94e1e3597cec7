package evmledger

// AmoyChainID is Polygon Amoy, where the bounty contract is deployed.
const AmoyChainID = 80002

// DefaultContract is the published bounty contract on Amoy.
const DefaultContract = "0xc6d3bba40408ad9a706fde69716c1adbdb7aea75"

// ContractABI covers the calls, views, events and receive hook the game uses.
const ContractABI = `[
  {"inputs":[],"stateMutability":"nonpayable","type":"constructor"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"user","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}],
   "name":"BountyPaid","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"user","type":"address"}],
   "name":"GameCompleted","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"user","type":"address"},
    {"indexed":false,"internalType":"uint8","name":"milestone","type":"uint8"},
    {"indexed":false,"internalType":"uint8","name":"rewardsClaimed","type":"uint8"}],
   "name":"MilestoneReached","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"user","type":"address"},
    {"indexed":false,"internalType":"uint8","name":"totalCompleted","type":"uint8"}],
   "name":"PuzzleCompleted","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"user","type":"address"}],
   "name":"SlidePerformed","type":"event"},
  {"inputs":[],"name":"payoutLast","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[],"name":"performSlide","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"}],
   "name":"setBounty","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"stateMutability":"payable","type":"receive"},
  {"inputs":[],"name":"bountyAmount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"getBalance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"user","type":"address"}],
   "name":"hasFinishedGame","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"lastPayoutTime","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"lastUser","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"user","type":"address"}],
   "name":"nextRewardMilestone","outputs":[
     {"internalType":"uint8","name":"milestone","type":"uint8"},
     {"internalType":"bool","name":"available","type":"bool"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"owner","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"payoutCooldown","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"","type":"address"}],
   "name":"puzzlesCompleted","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"","type":"address"}],
   "name":"rewardsClaimedCount","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`
