package domain

// KeyPrefix namespaces every key vecrec writes into the shared Redis.
const KeyPrefix = "vecrec:"
