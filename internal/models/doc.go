// Package models defines the core domain models for the group betting
// backend.
//
// # Virtual-money side
//
//   - Market: a binary (yes/no) parimutuel market owned by a group
//   - Bet: an immutable stake on one side of a market
//   - Membership: the per-(group, user) balance ledger entry; balances may
//     go negative (debt-based system)
//
// # Real-money side
//
//   - Wager: a fixed-stake bet whose buy-ins and payouts move through the
//     payment gateway
//   - WagerParticipant: one gateway checkout order per (wager, user)
//   - Payout: a single real-money payout instruction tracked against a
//     gateway batch
//
// # Design Principles
//
//  1. All money is integral: virtual balances are whole coins, real money is
//     cents. No floating-point amounts are persisted.
//  2. Terminal states are immutable: a resolved or cancelled market, and a
//     settled wager, never change again.
//  3. Avoid circular references: models hold ID strings, not pointers.
package models
