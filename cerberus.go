// Package cerberus contains the constants shared between the Cerberus
// command line tool and the bot logic in package lib.
package cerberus

import "time"

var (
	// Version is the current version of Cerberus. Set at build time.
	Version = "devel"
)

// Slash command names registered against the configured guild.
const (
	CmdForceVerify   = "force-verify"
	CmdForceUnverify = "force-unverify"
	CmdResendPanel   = "resend-panel"
)

// VerifyButtonID is the component custom ID on the panel button. Every
// panel ever published carries the same ID, so old panels keep working.
const VerifyButtonID = "verify_button"

// Captcha rendering parameters.
const (
	CaptchaLength = 6
	CaptchaWidth  = 200
	CaptchaHeight = 100
)

// DefaultReplyWindow is how long a user has to answer the captcha DM
// before the attempt times out.
const DefaultReplyWindow = 60 * time.Second
