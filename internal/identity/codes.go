// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardenid Contributors

package identity

// Diagnostic codes, one per failure call site. The numbering is stable across
// releases so logs remain correlatable; values never emitted are simply
// absent.
const (
	codeChangeEmailSession    = 2200
	codeChangeEmailRole       = 2201
	codeChangeEmailStatus     = 2202
	codeChangeEmailUnchanged  = 2203
	codeChangeEmailHookBefore = 2204
	codeChangeEmailPassword   = 2205
	codeChangeEmailUpdate     = 2206
	codeChangeEmailLogout     = 2207
	codeChangeEmailReissue    = 2208
	codeChangeEmailHookLast   = 2209
	codeChangeEmailNotify     = 2210

	codeCreateInsertMember  = 2214
	codeCreateInsertSession = 2215
	codeCreateHookLast      = 2216
	codeCreateNotify        = 2217

	codeDeleteSession    = 2218
	codeDeleteRole       = 2219
	codeDeleteStatus     = 2220
	codeDeleteHookBefore = 2221
	codeDeletePassword   = 2222
	codeDeleteLogout     = 2223
	codeDeleteMember     = 2224
	codeDeleteRetire     = 2225
	codeDeleteHookLast   = 2226
	codeDeleteNotify     = 2227

	codeLoginLookup     = 2230
	codeLoginRole       = 2231
	codeLoginStatus     = 2232
	codeLoginHookBefore = 2233
	codeLoginPassword   = 2234
	codeLoginLogout     = 2235
	codeLoginUpsert     = 2236
	codeLoginHookLast   = 2237
	codeLoginNotify     = 2238

	codeChangePasswordSession    = 2243
	codeChangePasswordRole       = 2244
	codeChangePasswordStatus     = 2245
	codeChangePasswordHookBefore = 2246
	codeChangePasswordPassword   = 2247
	codeChangePasswordUpdate     = 2248
	codeChangePasswordLogout     = 2249
	codeChangePasswordReissue    = 2250
	codeChangePasswordHookLast   = 2251
	codeChangePasswordNotify     = 2252

	codeLoginNoIdentifier = 2253

	// Shared code for transaction begin/commit transport failures.
	codeTxInternal = 2299
)
