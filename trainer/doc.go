// Package trainer provides high-level training orchestration for sequence to
// sequence translation models. It runs epochs of teacher forced training steps
// over a data loader, validates after every epoch and logs the losses. The
// model itself is supplied through the Forwarder and Learner interfaces.
package trainer
