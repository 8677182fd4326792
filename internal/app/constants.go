package app

// MinPlayersToStartGame is the engine's own floor for dealing a game. The session layer
// enforces the configured minimum on top of it.
const MinPlayersToStartGame = 2
